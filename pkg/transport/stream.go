package transport

import (
	"context"
	"io"

	"github.com/robotalks/chanmux/pkg/dataport"
	fx "github.com/robotalks/chanmux/pkg/framework"
)

// DefaultReadSize is the read buffer size of a Stream.
const DefaultReadSize = 1024

// Stream is a Transport over a byte stream like a socket or serial device.
type Stream struct {
	ReadSize int

	conn  io.ReadWriteCloser
	inlet *dataport.Inlet
}

// NewStream creates a Stream.
func NewStream(conn io.ReadWriteCloser, inlet *dataport.Inlet) *Stream {
	return &Stream{ReadSize: DefaultReadSize, conn: conn, inlet: inlet}
}

// Inlet implements Transport.
func (s *Stream) Inlet() *dataport.Inlet {
	return s.inlet
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// Close implements io.Closer.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// Name implements Named.
func (s *Stream) Name() string {
	return "transport"
}

// Run implements Runnable. The stream is closed when Run returns.
func (s *Stream) Run(ctx context.Context) error {
	size := s.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)
	return fx.RunWithContextCloser(ctx, s.conn, func() error {
		return Feed(s.conn, s.inlet, buf)
	})
}
