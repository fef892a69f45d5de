package dataport

import (
	"sync/atomic"
)

// Inlet is the ring of raw incoming bytes shared with a transport driver.
// The last byte of the region is reserved for the overflow flag, so the
// data capacity is one less than the region size.
type Inlet struct {
	buf      []byte
	rd       atomic.Uint64 // consumer position, monotonic
	wr       atomic.Uint64 // producer position, monotonic
	overflow atomic.Bool
	signal   *Signal
}

// NewInlet creates an Inlet over a region of size bytes. sig is notified on
// every commit and on overflow; it may be nil.
func NewInlet(size int, sig *Signal) *Inlet {
	if size < 2 {
		panic("dataport: inlet region must hold at least one data byte and the overflow flag")
	}
	return &Inlet{buf: make([]byte, size-1), signal: sig}
}

// Signal returns the data-available signal.
func (in *Inlet) Signal() *Signal {
	return in.signal
}

// Cap returns the data capacity.
func (in *Inlet) Cap() int {
	return len(in.buf)
}

// Len returns the number of unread bytes.
func (in *Inlet) Len() int {
	return int(in.wr.Load() - in.rd.Load())
}

// IsEmpty reports whether no unread bytes are available.
func (in *Inlet) IsEmpty() bool {
	return in.Len() == 0
}

// AmountConsecutive returns the length of the next contiguous run of unread
// bytes, which may be shorter than Len when the data wraps.
func (in *Inlet) AmountConsecutive() int {
	rd := in.rd.Load()
	avail := in.wr.Load() - rd
	if avail == 0 {
		return 0
	}
	size := uint64(len(in.buf))
	idx := rd % size
	if first := size - idx; first < avail {
		return int(first)
	}
	return int(avail)
}

// First returns a view onto the first AmountConsecutive bytes. The view
// must not be modified and is only valid until the matching Remove.
func (in *Inlet) First() []byte {
	n := in.AmountConsecutive()
	if n == 0 {
		return nil
	}
	idx := int(in.rd.Load() % uint64(len(in.buf)))
	return in.buf[idx : idx+n]
}

// Remove releases n bytes to the producer. n must not exceed the last
// reported AmountConsecutive.
func (in *Inlet) Remove(n int) {
	if n <= 0 {
		return
	}
	rd := in.rd.Load()
	if uint64(n) > in.wr.Load()-rd {
		panic("dataport: remove beyond unread data")
	}
	in.rd.Store(rd + uint64(n))
}

// IsOverflowed reports whether the producer dropped data.
func (in *Inlet) IsOverflowed() bool {
	return in.overflow.Load()
}

// Write stores as much of p as fits and returns the number of bytes stored.
// If not all of p fits the overflow flag is raised. Write must only be
// called by the single producer.
func (in *Inlet) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	wr := in.wr.Load()
	size := uint64(len(in.buf))
	space := size - (wr - in.rd.Load())
	n := uint64(len(p))
	if n > space {
		n = space
	}
	for i := uint64(0); i < n; i++ {
		in.buf[(wr+i)%size] = p[i]
	}
	in.wr.Store(wr + n)
	if n < uint64(len(p)) {
		in.overflow.Store(true)
	}
	if in.signal != nil {
		in.signal.Notify()
	}
	return int(n)
}
