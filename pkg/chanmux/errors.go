package chanmux

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady indicates the multiplexer has not been constructed.
	ErrNotReady = errors.New("not ready")
	// ErrOverflow indicates the transport dropped data because the inlet
	// was full. The stream cannot be trusted afterwards.
	ErrOverflow = errors.New("dataport fifo overflow")
	// ErrBounds indicates a length exceeding the dataport.
	ErrBounds = errors.New("length exceeds dataport")
	// ErrInvalidChannel indicates the channel is not configured.
	ErrInvalidChannel = errors.New("invalid channel")
)

// ConfigError reports an invalid construction parameter.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// BoundsError reports a read or write length the dataport cannot hold.
type BoundsError struct {
	Length int
	Size   int
}

// Error implements error.
func (e *BoundsError) Error() string {
	return fmt.Sprintf("length %d exceeds dataport size %d", e.Length, e.Size)
}

// Unwrap returns ErrBounds.
func (e *BoundsError) Unwrap() error { return ErrBounds }

// ChannelError reports an unknown channel id.
type ChannelError struct {
	Channel int
}

// Error implements error.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("invalid channel %d", e.Channel)
}

// Unwrap returns ErrInvalidChannel.
func (e *ChannelError) Unwrap() error { return ErrInvalidChannel }

// TransportError reports a write the transport did not fully accept.
type TransportError struct {
	Written int
	Length  int
	Err     error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport accepted %d of %d bytes: %v", e.Written, e.Length, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }
