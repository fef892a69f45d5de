package chanmux

import (
	"context"

	"github.com/robotalks/chanmux/pkg/dataport"
)

// Session is a client of the multiplexer with its own pair of dataports.
// A Session must not be used by multiple goroutines at the same time.
type Session struct {
	mux       *ChanMux
	writePort *dataport.Port
	readPort  *dataport.Port
}

// NewSession creates a Session with dataports of the configured size.
func (m *ChanMux) NewSession() (*Session, error) {
	if m == nil {
		return nil, ErrNotReady
	}
	return &Session{
		mux:       m,
		writePort: dataport.NewPort(m.conf.DataportSize),
		readPort:  dataport.NewPort(m.conf.DataportSize),
	}, nil
}

// WritePort is filled by the client before Write.
func (s *Session) WritePort() *dataport.Port {
	return s.writePort
}

// ReadPort holds the data after Read.
func (s *Session) ReadPort() *dataport.Port {
	return s.readPort
}

// Write sends the first length bytes of the write port on channel ch.
func (s *Session) Write(ch ChannelID, length int) (int, error) {
	if s == nil || s.mux == nil {
		return 0, ErrNotReady
	}
	if length < 0 || length > s.writePort.Size() {
		return 0, &BoundsError{Length: length, Size: s.writePort.Size()}
	}
	return s.mux.Write(ch, s.writePort.Buf()[:length])
}

// Read moves up to length received bytes of channel ch into the read
// port. It never blocks and returns 0 if nothing was received.
func (s *Session) Read(ch ChannelID, length int) (int, error) {
	if s == nil || s.mux == nil {
		return 0, ErrNotReady
	}
	if length < 0 || length > s.readPort.Size() {
		return 0, &BoundsError{Length: length, Size: s.readPort.Size()}
	}
	c, err := s.mux.Channel(ch)
	if err != nil {
		return 0, err
	}
	return c.Read(s.readPort.Buf()[:length]), nil
}

// Wait blocks until data is delivered to channel ch or ctx is done.
func (s *Session) Wait(ctx context.Context, ch ChannelID) error {
	if s == nil || s.mux == nil {
		return ErrNotReady
	}
	c, err := s.mux.Channel(ch)
	if err != nil {
		return err
	}
	return c.Wait(ctx)
}
