// Package fifo provides a bounded circular byte buffer for single-goroutine use.
package fifo

// Buffer is a fixed-capacity circular byte buffer. Pushing into a full
// Buffer fails; nothing is overwritten. It is not safe for concurrent use.
type Buffer struct {
	buf  []byte
	head int // position of the first byte, 0 <= head < len(buf)
	size int // occupied bytes, 0 <= size <= len(buf)
}

// New creates a Buffer holding up to capacity bytes.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("fifo: capacity must be positive")
	}
	return &Buffer{buf: make([]byte, capacity)}
}

// Capacity returns the maximum number of bytes.
func (b *Buffer) Capacity() int {
	return len(b.buf)
}

// Size returns the number of bytes stored.
func (b *Buffer) Size() int {
	return b.size
}

// Free returns the number of bytes that can still be pushed.
func (b *Buffer) Free() int {
	return len(b.buf) - b.size
}

// IsEmpty reports whether the Buffer holds no bytes.
func (b *Buffer) IsEmpty() bool {
	return b.size == 0
}

// IsFull reports whether the Buffer is at capacity.
func (b *Buffer) IsFull() bool {
	return b.size == len(b.buf)
}

// Push appends c. It returns false and drops nothing from the Buffer if
// the Buffer is full; the caller keeps c.
func (b *Buffer) Push(c byte) bool {
	if b.size == len(b.buf) {
		return false
	}
	b.buf[(b.head+b.size)%len(b.buf)] = c
	b.size++
	return true
}

// Peek returns the first byte without removing it.
func (b *Buffer) Peek() (byte, bool) {
	if b.size == 0 {
		return 0, false
	}
	return b.buf[b.head], true
}

// Pop removes and returns the first byte.
func (b *Buffer) Pop() (byte, bool) {
	if b.size == 0 {
		return 0, false
	}
	c := b.buf[b.head]
	b.head = (b.head + 1) % len(b.buf)
	b.size--
	return c, true
}

// Write pushes as much of p as fits and returns the count pushed.
func (b *Buffer) Write(p []byte) int {
	n := 0
	for n < len(p) && b.Push(p[n]) {
		n++
	}
	return n
}

// Read pops up to len(p) bytes into p and returns the count.
func (b *Buffer) Read(p []byte) int {
	n := 0
	for n < len(p) {
		c, ok := b.Pop()
		if !ok {
			break
		}
		p[n] = c
		n++
	}
	return n
}

// Reset discards all bytes.
func (b *Buffer) Reset() {
	b.head, b.size = 0, 0
}
