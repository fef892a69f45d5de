package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/chanmux/pkg/chanmux"
	"github.com/robotalks/chanmux/pkg/transport"
	"github.com/robotalks/chanmux/pkg/transport/mqtt"
)

func TestParseChannels(t *testing.T) {
	testCases := []struct {
		input string
		ids   []chanmux.ChannelID
		fail  bool
	}{
		{"", nil, false},
		{"1", []chanmux.ChannelID{1}, false},
		{" 1, 2 ,0x10,", []chanmux.ChannelID{1, 2, 16}, false},
		{"1,256", nil, true},
		{"a", nil, true},
	}
	for _, tc := range testCases {
		ids, err := ParseChannels(tc.input)
		if tc.fail {
			require.Errorf(t, err, "parse %q", tc.input)
			continue
		}
		require.NoErrorf(t, err, "parse %q", tc.input)
		require.Equalf(t, tc.ids, ids, "parse %q", tc.input)
	}
}

func TestApplyEnv(t *testing.T) {
	vars := map[string]string{
		"CHANMUX_NAME":         "arm",
		"CHANMUX_CHANNELS":     "3,4",
		"CHANMUX_STAGING_SIZE": "4KB",
		"CHANMUX_RPC":          "unix:///tmp/chanmux.sock",
	}
	conf := NewConfig()
	applyEnv(conf, func(key string) string { return vars[key] })
	require.Equal(t, "arm", conf.Name)
	require.Equal(t, "3,4", conf.Channels)
	require.Equal(t, 4*datasize.KB, conf.StagingSize)
	require.Equal(t, "unix:///tmp/chanmux.sock", conf.RPCAddr)
	require.Equal(t, Default().TransportURL, conf.TransportURL)
}

func TestApplyEnvInvalidSize(t *testing.T) {
	conf := NewConfig()
	conf.StagingSize = 3 * datasize.KB
	applyEnv(conf, func(key string) string {
		if key == "CHANMUX_STAGING_SIZE" {
			return "lots"
		}
		return ""
	})
	require.Equal(t, 3*datasize.KB, conf.StagingSize)
}

func TestMuxConfigDefaults(t *testing.T) {
	conf := NewConfig()
	conf.Channels = "2,1"
	mc, err := conf.MuxConfig(nil)
	require.NoError(t, err)
	require.Equal(t, []chanmux.ChannelConfig{{ID: 2}, {ID: 1}}, mc.Channels)
	require.Equal(t, chanmux.DefaultStagingSize, mc.StagingSize)
	require.Equal(t, chanmux.DefaultWatermarkPercent, mc.WatermarkPercent)
	require.Equal(t, chanmux.DefaultMaxPayload, mc.MaxPayload)

	conf.Channels = "x"
	_, err = conf.MuxConfig(nil)
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(`
name: arm
transport: tcp://robot:9000
stagingSize: 1KB
watermark: 50
maxPayload: 512B
channels:
  - id: 1
  - id: 7
    rxSize: 16KB
`), 0644))

	conf := NewConfig()
	conf.ChannelsFile = fn
	require.NoError(t, conf.Load())
	require.Equal(t, "arm", conf.Name)
	require.Equal(t, "tcp://robot:9000", conf.TransportURL)
	require.Equal(t, "1,7", conf.Channels)

	mc, err := conf.MuxConfig(nil)
	require.NoError(t, err)
	require.Equal(t, 1024, mc.StagingSize)
	require.Equal(t, 50, mc.WatermarkPercent)
	require.Equal(t, 512, mc.MaxPayload)
	require.Equal(t, chanmux.DefaultDataportSize, mc.DataportSize)
	require.Equal(t, []chanmux.ChannelConfig{{ID: 1}, {ID: 7, RxSize: 16384}}, mc.Channels)

	conf.ChannelsFile = filepath.Join(t.TempDir(), "missing.yaml")
	require.Error(t, conf.Load())

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("channels: [{id: 300}]"), 0644))
	_, err = LoadFile(bad)
	require.Error(t, err)
}

func TestOpenTransport(t *testing.T) {
	conf := NewConfig()
	tr, err := conf.OpenTransport()
	require.NoError(t, err)
	require.IsType(t, &transport.Loop{}, tr)
	require.Equal(t, int(conf.InletSize.Bytes())-1, tr.Inlet().Cap())

	conf.TransportURL = "mqtt://localhost:1883/robo/"
	tr, err = conf.OpenTransport()
	require.NoError(t, err)
	require.IsType(t, &mqtt.Transport{}, tr)

	conf.TransportURL = "serial://ttyS0"
	_, err = conf.OpenTransport()
	require.Error(t, err)
}

func TestMeta(t *testing.T) {
	conf := NewConfig()
	conf.Name = "arm"
	conf.WebsocketAddr = ":7701"
	meta := conf.Meta([]chanmux.ChannelID{1, 9})
	require.Equal(t, mqtt.Meta{
		Name:      "arm",
		Channels:  []int{1, 9},
		RPC:       "tcp://:7700",
		Websocket: "ws://:7701/",
	}, meta)
}
