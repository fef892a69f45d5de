package transport

import (
	"context"

	"github.com/robotalks/chanmux/pkg/dataport"
)

// Loop is a Transport writing into its own inlet, so every frame sent is
// received again. It is useful for local testing.
type Loop struct {
	InletWriter
}

// NewLoop creates a Loop.
func NewLoop(inlet *dataport.Inlet) *Loop {
	return &Loop{InletWriter{Inlet: inlet}}
}

// Inlet implements Transport.
func (l *Loop) Inlet() *dataport.Inlet {
	return l.InletWriter.Inlet
}

// Close implements io.Closer.
func (l *Loop) Close() error {
	return nil
}

// Name implements Named.
func (l *Loop) Name() string {
	return "loop"
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
