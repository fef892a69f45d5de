package client

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robotalks/chanmux/pkg/rpc"
	"github.com/robotalks/chanmux/pkg/transport/mqtt"
)

// Config provides common options to connect to a daemon.
type Config struct {
	// ServerURL specifies the RPC address of the daemon.
	// e.g. tcp://host:7700, unix:///run/chanmux.sock, ws://host:7701/
	ServerURL string

	// Instance is the announced name to connect to. It is looked up on
	// DiscoverURL when set.
	Instance string
	// DiscoverURL specifies the MQTT broker daemons announce on.
	// e.g. mqtt://host:port/topic-prefix
	DiscoverURL string
	// DiscoverTimeout is how long to collect announcements.
	DiscoverTimeout time.Duration
}

var defaultConfig = Config{
	ServerURL:       "tcp://localhost:7700",
	DiscoverTimeout: mqtt.DefaultDiscoverTimeout,
}

func init() {
	if val := os.Getenv("CHANMUX_SERVER"); val != "" {
		defaultConfig.ServerURL = val
	}
	if val := os.Getenv("CHANMUX_INSTANCE"); val != "" {
		defaultConfig.Instance = val
	}
	if val := os.Getenv("CHANMUX_MQTT_URL"); val != "" {
		defaultConfig.DiscoverURL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ServerURL, "server", defaultConfig.ServerURL, "Daemon RPC address.")
	flag.StringVar(&defaultConfig.Instance, "instance", defaultConfig.Instance, "Announced instance to connect to.")
	flag.StringVar(&defaultConfig.DiscoverURL, "mqtt", defaultConfig.DiscoverURL, "MQTT broker URL for discovery.")
	flag.DurationVar(&defaultConfig.DiscoverTimeout, "discover-timeout", defaultConfig.DiscoverTimeout, "Discovery timeout.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Discover lists announced instances.
func (c *Config) Discover(ctx context.Context) ([]mqtt.Meta, error) {
	if c.DiscoverURL == "" {
		return nil, fmt.Errorf("discovery requires a MQTT broker URL")
	}
	return mqtt.Discover(ctx, c.DiscoverURL, c.DiscoverTimeout)
}

// Resolve returns the server address to connect to.
func (c *Config) Resolve(ctx context.Context) (string, error) {
	if c.Instance == "" {
		return c.ServerURL, nil
	}
	metas, err := c.Discover(ctx)
	if err != nil {
		return "", err
	}
	return SelectServer(metas, c.Instance)
}

// SelectServer finds the RPC address of the named instance.
func SelectServer(metas []mqtt.Meta, name string) (string, error) {
	for _, meta := range metas {
		if meta.Name != name {
			continue
		}
		if meta.RPC != "" {
			return meta.RPC, nil
		}
		if meta.Websocket != "" {
			return meta.Websocket, nil
		}
		return "", fmt.Errorf("instance %q has no RPC address", name)
	}
	return "", fmt.Errorf("instance %q not found", name)
}

// Connect connects to the daemon.
func (c *Config) Connect(ctx context.Context) (*rpc.Client, error) {
	addr, err := c.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return rpc.Dial(addr)
}

// MustConnect connects to the daemon and fails on error.
func (c *Config) MustConnect(ctx context.Context) *rpc.Client {
	client, err := c.Connect(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return client
}
