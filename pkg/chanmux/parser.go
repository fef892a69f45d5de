package chanmux

// ParseState is the position of the parser within a frame.
type ParseState int

const (
	// StateAwaitHeader waits for a channel id.
	StateAwaitHeader ParseState = iota
	// StateReadLength accumulates the payload length.
	StateReadLength
	// StateReadPayload accumulates payload bytes.
	StateReadPayload
)

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	// Frame is set when the byte completed a frame. Its payload is only
	// valid until the next call to Parse.
	Frame *Frame
	// Resync is set when the byte was dropped or aborted the frame.
	Resync bool
}

// Parser rebuilds frames from a byte stream, one byte at a time.
// Malformed input never fails; it resets the parser to StateAwaitHeader.
type Parser struct {
	// MaxPayload bounds the declared payload length; 0 means MaxPayloadLimit.
	MaxPayload int
	// IsValid accepts channel ids; nil accepts all.
	IsValid func(ChannelID) bool

	state    ParseState
	frame    Frame
	length   int
	lenBytes int
	buf      []byte
}

// State gets the current parse state.
func (p *Parser) State() ParseState {
	return p.state
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.length, p.lenBytes = StateAwaitHeader, 0, 0
	p.frame = Frame{}
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case StateAwaitHeader:
		ch := ChannelID(b)
		if p.IsValid != nil && !p.IsValid(ch) {
			pr.Resync = true
			return
		}
		p.frame.Channel = ch
		p.length, p.lenBytes = 0, 0
		p.state = StateReadLength
	case StateReadLength:
		p.length = p.length<<8 | int(b)
		if p.lenBytes++; p.lenBytes < 2 {
			return
		}
		if p.length > p.maxPayload() {
			p.Reset()
			pr.Resync = true
			return
		}
		if p.length == 0 {
			pr.Frame = p.frameReady()
			return
		}
		if cap(p.buf) < p.length {
			p.buf = make([]byte, 0, p.length)
		}
		p.buf = p.buf[:0]
		p.state = StateReadPayload
	case StateReadPayload:
		p.buf = append(p.buf, b)
		if len(p.buf) >= p.length {
			p.frame.Payload = p.buf
			pr.Frame = p.frameReady()
		}
	}
	return
}

func (p *Parser) maxPayload() int {
	if p.MaxPayload <= 0 || p.MaxPayload > MaxPayloadLimit {
		return MaxPayloadLimit
	}
	return p.MaxPayload
}

func (p *Parser) frameReady() *Frame {
	p.state = StateAwaitHeader
	f := p.frame
	p.frame = Frame{}
	return &f
}
