package dataport

import "context"

// Signal is an edge-triggered, coalescing wakeup without payload.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify wakes up a waiter. Notifications before the next Wait collapse
// into one.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until notified or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C exposes the notification chan for use in select.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}
