package dataport

// Port is a fixed-size buffer shared between a client and the multiplexer.
type Port struct {
	buf []byte
}

// NewPort creates a Port of size bytes.
func NewPort(size int) *Port {
	return &Port{buf: make([]byte, size)}
}

// Buf returns the whole buffer.
func (p *Port) Buf() []byte {
	return p.buf
}

// Size returns the buffer size.
func (p *Port) Size() int {
	return len(p.buf)
}
