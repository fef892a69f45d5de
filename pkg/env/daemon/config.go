package daemon

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/golang/glog"

	"github.com/robotalks/chanmux/pkg/chanmux"
	"github.com/robotalks/chanmux/pkg/env"
	"github.com/robotalks/chanmux/pkg/transport"
	"github.com/robotalks/chanmux/pkg/transport/mqtt"
)

// Config provides options of the multiplexer daemon.
type Config struct {
	// Name identifies the instance in announcements.
	Name string
	// TransportURL selects the lower transport.
	// e.g. tcp://host:port, unix:///path, file:///dev/ttyUSB0, loop://,
	// mqtt://host:port/prefix/?link=name&role=host
	TransportURL string
	InletSize    datasize.ByteSize

	// Channels is a comma separated list of channel ids.
	Channels string
	// ChannelsFile is a YAML file with channels and buffer sizes. Its
	// values take precedence over flags and environment.
	ChannelsFile string

	StagingSize      datasize.ByteSize
	WatermarkPercent int
	MaxPayload       datasize.ByteSize
	DataportSize     datasize.ByteSize
	RxSize           datasize.ByteSize

	RPCAddr       string
	WebsocketAddr string
	MetricsAddr   string
	MaxWait       time.Duration

	// AnnounceURL is the MQTT broker to announce the instance on.
	AnnounceURL string

	rxSizes map[chanmux.ChannelID]int
}

var defaultConfig = Config{
	TransportURL:     "loop://",
	InletSize:        8 * datasize.KB,
	Channels:         "1",
	StagingSize:      chanmux.DefaultStagingSize,
	WatermarkPercent: chanmux.DefaultWatermarkPercent,
	MaxPayload:       chanmux.DefaultMaxPayload,
	DataportSize:     chanmux.DefaultDataportSize,
	RxSize:           chanmux.DefaultRxSize,
	RPCAddr:          "tcp://:7700",
	MaxWait:          time.Minute,
}

func init() {
	applyEnv(&defaultConfig, os.Getenv)
	if defaultConfig.Name == "" {
		defaultConfig.Name = env.MachineID()
	}
}

func applyEnv(conf *Config, getenv func(string) string) {
	strs := map[string]*string{
		"CHANMUX_NAME":          &conf.Name,
		"CHANMUX_TRANSPORT":     &conf.TransportURL,
		"CHANMUX_CHANNELS":      &conf.Channels,
		"CHANMUX_CHANNELS_FILE": &conf.ChannelsFile,
		"CHANMUX_RPC":           &conf.RPCAddr,
		"CHANMUX_WS":            &conf.WebsocketAddr,
		"CHANMUX_METRICS":       &conf.MetricsAddr,
		"CHANMUX_MQTT_URL":      &conf.AnnounceURL,
	}
	for key, p := range strs {
		if val := getenv(key); val != "" {
			*p = val
		}
	}
	if val := getenv("CHANMUX_STAGING_SIZE"); val != "" {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(val)); err != nil {
			glog.Warningf("ignore CHANMUX_STAGING_SIZE %q: %v", val, err)
		} else {
			conf.StagingSize = size
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&c.Name, "name", c.Name, "Instance name")
	flag.StringVar(&c.TransportURL, "transport", c.TransportURL, "Transport URL")
	flag.TextVar(&c.InletSize, "inlet-size", c.InletSize, "Inlet size")
	flag.StringVar(&c.Channels, "channels", c.Channels, "Comma separated channel ids")
	flag.StringVar(&c.ChannelsFile, "channels-file", c.ChannelsFile, "YAML file of channels and sizes")
	flag.TextVar(&c.StagingSize, "staging-size", c.StagingSize, "Staging fifo size")
	flag.IntVar(&c.WatermarkPercent, "watermark", c.WatermarkPercent, "Staging watermark in percent")
	flag.TextVar(&c.MaxPayload, "max-payload", c.MaxPayload, "Max payload per frame")
	flag.TextVar(&c.DataportSize, "dataport-size", c.DataportSize, "Session dataport size")
	flag.TextVar(&c.RxSize, "rx-size", c.RxSize, "Channel receive buffer size")
	flag.StringVar(&c.RPCAddr, "rpc", c.RPCAddr, "RPC listen address, empty to disable")
	flag.StringVar(&c.WebsocketAddr, "ws", c.WebsocketAddr, "Websocket RPC listen address, e.g. :7701")
	flag.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "Metrics listen address, e.g. :9100")
	flag.DurationVar(&c.MaxWait, "max-wait", c.MaxWait, "Max duration of a wait request")
	flag.StringVar(&c.AnnounceURL, "mqtt", c.AnnounceURL, "MQTT broker URL to announce on")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ParseChannels parses a comma separated list of channel ids.
func ParseChannels(s string) ([]chanmux.ChannelID, error) {
	var ids []chanmux.ChannelID
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		id, err := strconv.ParseUint(item, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q", item)
		}
		ids = append(ids, chanmux.ChannelID(id))
	}
	return ids, nil
}

// Load reads ChannelsFile if specified.
func (c *Config) Load() error {
	if c.ChannelsFile == "" {
		return nil
	}
	f, err := LoadFile(c.ChannelsFile)
	if err != nil {
		return err
	}
	f.ApplyTo(c)
	return nil
}

// MuxConfig builds the multiplexer configuration.
func (c *Config) MuxConfig(metrics *chanmux.Metrics) (chanmux.Config, error) {
	ids, err := ParseChannels(c.Channels)
	if err != nil {
		return chanmux.Config{}, err
	}
	conf := chanmux.Config{
		StagingSize:      int(c.StagingSize.Bytes()),
		WatermarkPercent: c.WatermarkPercent,
		MaxPayload:       int(c.MaxPayload.Bytes()),
		DataportSize:     int(c.DataportSize.Bytes()),
		RxSize:           int(c.RxSize.Bytes()),
		Metrics:          metrics,
	}
	for _, id := range ids {
		conf.Channels = append(conf.Channels, chanmux.ChannelConfig{ID: id, RxSize: c.rxSizes[id]})
	}
	return conf, nil
}

// OpenTransport opens the transport from TransportURL.
func (c *Config) OpenTransport() (transport.Transport, error) {
	u, err := url.Parse(c.TransportURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL: %v", err)
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		return mqtt.Open(c.TransportURL, int(c.InletSize.Bytes()))
	default:
		return transport.Open(c.TransportURL, int(c.InletSize.Bytes()))
	}
}

// Meta builds the announced instance meta.
func (c *Config) Meta(channels []chanmux.ChannelID) mqtt.Meta {
	meta := mqtt.Meta{Name: c.Name, RPC: c.RPCAddr}
	if c.WebsocketAddr != "" {
		meta.Websocket = "ws://" + c.WebsocketAddr + "/"
	}
	for _, id := range channels {
		meta.Channels = append(meta.Channels, int(id))
	}
	return meta
}
