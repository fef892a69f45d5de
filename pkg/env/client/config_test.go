package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/chanmux/pkg/transport/mqtt"
)

func TestSelectServer(t *testing.T) {
	metas := []mqtt.Meta{
		{Name: "arm", RPC: "tcp://arm:7700"},
		{Name: "leg", Websocket: "ws://leg:7701/"},
		{Name: "head"},
	}
	testCases := []struct {
		name string
		addr string
		fail bool
	}{
		{"arm", "tcp://arm:7700", false},
		{"leg", "ws://leg:7701/", false},
		{"head", "", true},
		{"tail", "", true},
	}
	for _, tc := range testCases {
		addr, err := SelectServer(metas, tc.name)
		if tc.fail {
			require.Errorf(t, err, "select %s", tc.name)
			continue
		}
		require.NoErrorf(t, err, "select %s", tc.name)
		require.Equal(t, tc.addr, addr)
	}
}

func TestResolve(t *testing.T) {
	conf := NewConfig()
	conf.ServerURL = "unix:///run/chanmux.sock"
	conf.Instance = ""
	addr, err := conf.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "unix:///run/chanmux.sock", addr)

	conf.Instance = "arm"
	conf.DiscoverURL = ""
	_, err = conf.Resolve(context.Background())
	require.Error(t, err)
}
