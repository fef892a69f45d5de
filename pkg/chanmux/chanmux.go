package chanmux

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"github.com/robotalks/chanmux/pkg/fifo"
)

// ChanMux is the multiplexer instance. New builds it completely before
// returning; afterwards only Run drives the receive path while any number
// of goroutines may write.
type ChanMux struct {
	conf     Config
	channels map[ChannelID]*Channel
	ids      []ChannelID
	metrics  *Metrics

	parser  Parser
	tx      transmitter
	drainer *Drainer
}

// New creates a ChanMux on top of lower.
func New(conf Config, lower Lower) (*ChanMux, error) {
	conf = conf.withDefaults()
	if err := conf.validate(lower); err != nil {
		return nil, err
	}
	m := &ChanMux{
		conf:     conf,
		channels: make(map[ChannelID]*Channel, len(conf.Channels)),
		metrics:  conf.Metrics,
		tx:       transmitter{writer: lower.Writer, maxPayload: conf.MaxPayload},
	}
	for _, chConf := range conf.Channels {
		rxSize := chConf.RxSize
		if rxSize == 0 {
			rxSize = conf.RxSize
		}
		m.channels[chConf.ID] = newChannel(chConf.ID, rxSize, conf.Metrics)
		m.ids = append(m.ids, chConf.ID)
	}
	sort.Slice(m.ids, func(i, j int) bool { return m.ids[i] < m.ids[j] })
	m.parser = Parser{
		MaxPayload: conf.MaxPayload,
		IsValid: func(id ChannelID) bool {
			return m.channels[id] != nil
		},
	}
	m.drainer = NewDrainer(lower.Inlet, lower.Inlet.Signal(), fifo.New(conf.StagingSize), m)
	m.drainer.Watermark = WatermarkOf(conf.StagingSize, conf.WatermarkPercent)
	m.drainer.Metrics = conf.Metrics
	glog.Infof("chanmux created: channels %v, staging %d, watermark %d",
		m.ids, conf.StagingSize, m.drainer.Watermark)
	return m, nil
}

// Channels lists the configured channel ids in ascending order.
func (m *ChanMux) Channels() []ChannelID {
	if m == nil {
		return nil
	}
	return append([]ChannelID(nil), m.ids...)
}

// Channel looks up a configured channel.
func (m *ChanMux) Channel(id ChannelID) (*Channel, error) {
	if m == nil {
		return nil, ErrNotReady
	}
	ch := m.channels[id]
	if ch == nil {
		return nil, &ChannelError{Channel: int(id)}
	}
	return ch, nil
}

// Drainer returns the drain worker.
func (m *ChanMux) Drainer() *Drainer {
	return m.drainer
}

// Run runs the drain worker until the inlet overflows or ctx is done.
func (m *ChanMux) Run(ctx context.Context) error {
	if m == nil {
		return ErrNotReady
	}
	return m.drainer.Run(ctx)
}

// TakeByte implements ByteTaker. Only the drain worker calls it.
func (m *ChanMux) TakeByte(b byte) {
	pr := m.parser.Parse(b)
	if pr.Resync {
		m.metrics.resync()
		glog.V(3).Infof("resync on byte 0x%02x", b)
	}
	if f := pr.Frame; f != nil {
		ch := m.channels[f.Channel]
		if dropped := ch.deliver(f.Payload); dropped > 0 {
			glog.Warningf("channel %d: rx buffer full, dropped %d of %d bytes",
				f.Channel, dropped, len(f.Payload))
		} else if glog.V(2) {
			glog.Infof("channel %d: received %d bytes", f.Channel, len(f.Payload))
		}
	}
}

// Write frames p on channel ch and sends it. It returns len(p) on
// success; on failure no complete frame is assumed to have reached the
// peer and 0 is returned.
func (m *ChanMux) Write(ch ChannelID, p []byte) (int, error) {
	if m == nil {
		return 0, ErrNotReady
	}
	c := m.channels[ch]
	if c == nil {
		return 0, &ChannelError{Channel: int(ch)}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := m.tx.send(ch, p); err != nil {
		glog.Errorf("channel %d: write %d bytes failed: %v", ch, len(p), err)
		return 0, err
	}
	c.metrics.sent(len(p))
	return len(p), nil
}
