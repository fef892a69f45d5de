package chanmux

import (
	"io"
	"sync"
)

// transmitter serializes frame writes onto the single transport.
type transmitter struct {
	writer     io.Writer
	maxPayload int

	buf  []byte
	lock sync.Mutex
}

// send frames p and hands all frames to the transport in one write.
func (t *transmitter) send(ch ChannelID, p []byte) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.buf = AppendFrames(t.buf[:0], ch, p, t.maxPayload)
	n, err := t.writer.Write(t.buf)
	if err == nil && n < len(t.buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &TransportError{Written: n, Length: len(t.buf), Err: err}
	}
	return nil
}
