// Package transport provides the lower layers a ChanMux runs on.
//
// A Transport owns the Inlet received bytes are fed into, and accepts
// encoded frames through Write. Run pumps received bytes until the link
// fails or the context is done.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/chanmux/pkg/chanmux"
	"github.com/robotalks/chanmux/pkg/dataport"
)

// DefaultInletSize is the inlet region size including the overflow byte.
const DefaultInletSize = 8193

// Transport is the lower layer of a ChanMux.
type Transport interface {
	io.WriteCloser
	// Inlet returns the inlet fed by Run.
	Inlet() *dataport.Inlet
	// Run feeds received bytes into the inlet.
	Run(ctx context.Context) error
}

// Lower builds the chanmux.Lower of a Transport.
func Lower(t Transport) chanmux.Lower {
	return chanmux.Lower{Inlet: t.Inlet(), Writer: t}
}

// NewInlet creates an inlet with its own data-available signal.
// A non-positive size takes DefaultInletSize.
func NewInlet(size int) *dataport.Inlet {
	if size <= 0 {
		size = DefaultInletSize
	}
	return dataport.NewInlet(size, dataport.NewSignal())
}

// Open opens a byte stream transport from a URL:
//
//	tcp://host:port
//	unix:///path/to/socket
//	file:///dev/ttyUSB0
//	loop://
func Open(transportURL string, inletSize int) (Transport, error) {
	u, err := url.Parse(transportURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL: %v", err)
	}
	var conn io.ReadWriteCloser
	switch u.Scheme {
	case "tcp":
		conn, err = net.Dial("tcp", u.Host)
	case "unix":
		conn, err = net.Dial("unix", u.Path)
	case "file":
		conn, err = os.OpenFile(u.Path, os.O_RDWR, 0)
	case "loop":
		return NewLoop(NewInlet(inletSize)), nil
	default:
		return nil, fmt.Errorf("unknown transport URL scheme: %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	glog.Infof("transport %s opened", transportURL)
	return NewStream(conn, NewInlet(inletSize)), nil
}
