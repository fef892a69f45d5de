package chanmux

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects multiplexer counters. A nil *Metrics records nothing.
type Metrics struct {
	drained     prometheus.Counter
	processed   prometheus.Counter
	boosts      prometheus.Counter
	stagingUsed prometheus.Gauge
	resyncs     prometheus.Counter
	overflows   prometheus.Counter
	frames      *prometheus.CounterVec
	rxDropped   *prometheus.CounterVec
	txBytes     *prometheus.CounterVec
}

// NewMetrics creates Metrics and registers them with reg if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		drained: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chanmux_drained_bytes_total",
			Help: "Bytes moved from the inlet into the staging fifo",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chanmux_processed_bytes_total",
			Help: "Bytes fed into the frame parser",
		}),
		boosts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chanmux_boosts_total",
			Help: "Drain phases ended above the staging watermark",
		}),
		stagingUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chanmux_staging_used_bytes",
			Help: "Staging fifo occupancy after the last drain phase",
		}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chanmux_resyncs_total",
			Help: "Bytes dropped or frames aborted by the parser",
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chanmux_overflows_total",
			Help: "Inlet overflows detected",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chanmux_frames_total",
			Help: "Frames delivered per channel",
		}, []string{"channel"}),
		rxDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chanmux_rx_dropped_bytes_total",
			Help: "Payload bytes dropped because the channel receive buffer was full",
		}, []string{"channel"}),
		txBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chanmux_tx_bytes_total",
			Help: "Payload bytes written per channel",
		}, []string{"channel"}),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.drained, m.processed, m.boosts, m.stagingUsed,
		m.resyncs, m.overflows, m.frames, m.rxDropped, m.txBytes,
	}
}

type channelMetrics struct {
	frames    prometheus.Counter
	rxDropped prometheus.Counter
	txBytes   prometheus.Counter
}

func (m *Metrics) forChannel(id ChannelID) *channelMetrics {
	if m == nil {
		return nil
	}
	label := strconv.Itoa(int(id))
	return &channelMetrics{
		frames:    m.frames.WithLabelValues(label),
		rxDropped: m.rxDropped.WithLabelValues(label),
		txBytes:   m.txBytes.WithLabelValues(label),
	}
}

func (m *Metrics) drainedBytes(n int) {
	if m != nil && n > 0 {
		m.drained.Add(float64(n))
	}
}

func (m *Metrics) processedBytes(n int) {
	if m != nil && n > 0 {
		m.processed.Add(float64(n))
	}
}

func (m *Metrics) boost(used int) {
	if m != nil {
		m.boosts.Inc()
		m.stagingUsed.Set(float64(used))
	}
}

func (m *Metrics) staging(used int) {
	if m != nil {
		m.stagingUsed.Set(float64(used))
	}
}

func (m *Metrics) resync() {
	if m != nil {
		m.resyncs.Inc()
	}
}

func (m *Metrics) overflow() {
	if m != nil {
		m.overflows.Inc()
	}
}

func (c *channelMetrics) frame(dropped int) {
	if c == nil {
		return
	}
	c.frames.Inc()
	if dropped > 0 {
		c.rxDropped.Add(float64(dropped))
	}
}

func (c *channelMetrics) sent(n int) {
	if c != nil {
		c.txBytes.Add(float64(n))
	}
}
