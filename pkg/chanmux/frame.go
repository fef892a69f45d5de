package chanmux

import (
	"io"
)

// ChannelID identifies a channel on the wire.
type ChannelID uint8

// HeaderSize is the number of bytes preceding the payload of a frame.
const HeaderSize = 3

// MaxPayloadLimit is the largest payload the length field can express.
const MaxPayloadLimit = 0xffff

// Frame is one multiplexed unit of channel data.
type Frame struct {
	Channel ChannelID
	Payload []byte
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	return f.AppendTo(make([]byte, 0, HeaderSize+len(f.Payload)))
}

// AppendTo appends the encoded frame to b.
func (f *Frame) AppendTo(b []byte) []byte {
	l := len(f.Payload)
	b = append(b, byte(f.Channel), byte(l>>8), byte(l))
	return append(b, f.Payload...)
}

// WriteTo writes encoded bytes.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}

// AppendFrames appends p as consecutive frames of channel ch, each carrying
// at most maxPayload bytes.
func AppendFrames(b []byte, ch ChannelID, p []byte, maxPayload int) []byte {
	if maxPayload <= 0 || maxPayload > MaxPayloadLimit {
		maxPayload = MaxPayloadLimit
	}
	for len(p) > 0 {
		n := len(p)
		if n > maxPayload {
			n = maxPayload
		}
		f := Frame{Channel: ch, Payload: p[:n]}
		b = f.AppendTo(b)
		p = p[n:]
	}
	return b
}
