package chanmux

import (
	"context"
	"sync"

	"github.com/robotalks/chanmux/pkg/dataport"
	"github.com/robotalks/chanmux/pkg/fifo"
)

// Channel is the receive side of one logical channel. The drain worker
// delivers payloads into it; readers drain it concurrently.
type Channel struct {
	id      ChannelID
	signal  *dataport.Signal
	metrics *channelMetrics

	rx   *fifo.Buffer
	lock sync.Mutex
}

func newChannel(id ChannelID, rxSize int, metrics *Metrics) *Channel {
	return &Channel{
		id:      id,
		signal:  dataport.NewSignal(),
		metrics: metrics.forChannel(id),
		rx:      fifo.New(rxSize),
	}
}

// ID returns the channel id.
func (c *Channel) ID() ChannelID {
	return c.id
}

// Buffered returns the number of received bytes not read yet.
func (c *Channel) Buffered() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.rx.Size()
}

// Capacity returns the receive buffer capacity.
func (c *Channel) Capacity() int {
	return c.rx.Capacity()
}

// Read moves up to len(p) received bytes into p. It never blocks.
func (c *Channel) Read(p []byte) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.rx.Read(p)
}

// Wait blocks until a frame is delivered to the channel or ctx is done.
// Deliveries before the call may satisfy it immediately.
func (c *Channel) Wait(ctx context.Context) error {
	return c.signal.Wait(ctx)
}

// deliver stores a payload and returns how many bytes did not fit.
func (c *Channel) deliver(p []byte) (dropped int) {
	c.lock.Lock()
	n := c.rx.Write(p)
	c.lock.Unlock()
	dropped = len(p) - n
	c.metrics.frame(dropped)
	if n > 0 {
		c.signal.Notify()
	}
	return
}
