package chanmux

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/chanmux/pkg/fifo"
)

// Source is the consumer side of the shared inlet ring.
type Source interface {
	IsEmpty() bool
	AmountConsecutive() int
	First() []byte
	Remove(n int)
	IsOverflowed() bool
}

// Waiter blocks until the producer signals new data or a state change.
type Waiter interface {
	Wait(context.Context) error
}

// ByteTaker consumes the staged stream one byte at a time.
type ByteTaker interface {
	TakeByte(byte)
}

// Drainer moves bytes from a Source into a staging fifo and feeds them to
// a ByteTaker. By default it prefers draining, which keeps the Source
// empty for its producer. Once the staging fifo passes Watermark it
// processes the excess before draining again.
type Drainer struct {
	// Watermark is the staging occupancy above which processing gets a
	// boost. It is kept below the staging capacity.
	Watermark int
	Metrics   *Metrics

	source  Source
	waiter  Waiter
	staging *fifo.Buffer
	taker   ByteTaker
	monitor overflowMonitor
	err     error
}

// WatermarkOf returns percent of capacity, rounded down.
func WatermarkOf(capacity, percent int) int {
	return capacity * percent / 100
}

// NewDrainer creates a Drainer with the watermark at
// DefaultWatermarkPercent of the staging capacity.
func NewDrainer(source Source, waiter Waiter, staging *fifo.Buffer, taker ByteTaker) *Drainer {
	return &Drainer{
		Watermark: WatermarkOf(staging.Capacity(), DefaultWatermarkPercent),
		source:    source,
		waiter:    waiter,
		staging:   staging,
		taker:     taker,
	}
}

// Staging exposes the staging fifo.
func (d *Drainer) Staging() *fifo.Buffer {
	return d.staging
}

// Run loops until the source overflows or ctx is done. An overflow is
// reported once as ErrOverflow; later calls return it again without
// touching the source.
func (d *Drainer) Run(ctx context.Context) error {
	if d.err != nil {
		return d.err
	}
	if d.Watermark >= d.staging.Capacity() {
		d.Watermark = d.staging.Capacity() - 1
	}
	for {
		if d.staging.IsEmpty() && d.source.IsEmpty() {
			// no more data will arrive after an overflow
			if err := d.monitor.check(d.source, d.Metrics); err != nil {
				d.err = err
				return err
			}
			if err := d.waiter.Wait(ctx); err != nil {
				return err
			}
			continue
		}
		d.process(d.drain())
	}
}

// drain refills the staging fifo and returns the processing boost.
func (d *Drainer) drain() (boost int) {
	for {
		avail := d.source.AmountConsecutive()
		if avail == 0 {
			return
		}
		run := d.source.First()
		copied := 0
		for copied < avail && d.staging.Push(run[copied]) {
			copied++
		}
		d.source.Remove(copied)
		d.Metrics.drainedBytes(copied)

		used := d.staging.Size()
		if used > d.Watermark {
			boost = used - d.Watermark
			d.Metrics.boost(used)
			if glog.V(3) && copied < avail {
				glog.Infof("avail %d, copied %d, boost %d", avail, copied, boost)
			}
			return
		}
		d.Metrics.staging(used)
	}
}

// process feeds one byte plus boost more, fewer if the fifo runs empty.
func (d *Drainer) process(boost int) (n int) {
	for {
		b, ok := d.staging.Pop()
		if !ok {
			break
		}
		d.taker.TakeByte(b)
		n++
		if boost <= 0 {
			break
		}
		boost--
	}
	d.Metrics.processedBytes(n)
	return
}

// overflowMonitor turns the inlet overflow flag into ErrOverflow.
type overflowMonitor struct {
	reported bool
}

func (m *overflowMonitor) check(source Source, metrics *Metrics) error {
	if !source.IsOverflowed() {
		return nil
	}
	if !m.reported {
		m.reported = true
		metrics.overflow()
		glog.Error("dataport fifo overflow detected")
	}
	return ErrOverflow
}
