package chanmux

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/chanmux/pkg/dataport"
	"github.com/robotalks/chanmux/pkg/fifo"
)

type recordingTaker struct {
	bytes []byte
}

func (r *recordingTaker) TakeByte(b byte) {
	r.bytes = append(r.bytes, b)
}

type chanTaker chan byte

func (c chanTaker) TakeByte(b byte) {
	c <- b
}

type countingWaiter struct {
	*dataport.Signal
	waits   atomic.Int32
	enterCh chan struct{}
}

func newCountingWaiter(sig *dataport.Signal) *countingWaiter {
	return &countingWaiter{Signal: sig, enterCh: make(chan struct{}, 16)}
}

func (w *countingWaiter) Wait(ctx context.Context) error {
	w.waits.Add(1)
	select {
	case w.enterCh <- struct{}{}:
	default:
	}
	return w.Signal.Wait(ctx)
}

func seq(from, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(from + i)
	}
	return b
}

func TestDrainerBoost(t *testing.T) {
	testCases := []struct {
		name      string
		inletSize int
		staging   int
		chunks    [][]byte
		removed   int
		boost     int
		processed []byte
		remains   int
	}{
		{
			name:      "above watermark",
			inletSize: 33,
			staging:   8,
			chunks:    [][]byte{seq(1, 7)},
			boost:     1,
			processed: []byte{1, 2},
		},
		{
			name:      "below watermark",
			inletSize: 33,
			staging:   8,
			chunks:    [][]byte{seq(1, 3)},
			boost:     0,
			processed: []byte{1},
		},
		{
			name:      "staging full",
			inletSize: 33,
			staging:   8,
			chunks:    [][]byte{seq(1, 12)},
			boost:     2,
			processed: []byte{1, 2, 3},
			remains:   4,
		},
		{
			name:      "wrapped inlet",
			inletSize: 9,
			staging:   16,
			removed:   6,
			chunks:    [][]byte{seq(0, 6), seq(6, 5)},
			boost:     0,
			processed: []byte{6},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inlet := dataport.NewInlet(tc.inletSize, dataport.NewSignal())
			for n, chunk := range tc.chunks {
				inlet.Write(chunk)
				if n == 0 && tc.removed > 0 {
					inlet.Remove(tc.removed)
				}
			}
			var taker recordingTaker
			d := NewDrainer(inlet, inlet.Signal(), fifo.New(tc.staging), &taker)
			boost := d.drain()
			require.Equal(t, tc.boost, boost, "boost mismatch")
			require.Equal(t, tc.remains, inlet.Len(), "inlet remains mismatch")
			require.Equal(t, len(tc.processed), d.process(boost))
			require.Equal(t, tc.processed, taker.bytes)
		})
	}
}

func TestDrainerWatermark(t *testing.T) {
	d := NewDrainer(dataport.NewInlet(4, nil), dataport.NewSignal(), fifo.New(8), &recordingTaker{})
	require.Equal(t, 6, d.Watermark)
	d = NewDrainer(dataport.NewInlet(4, nil), dataport.NewSignal(), fifo.New(2048), &recordingTaker{})
	require.Equal(t, 1536, d.Watermark)
	d = NewDrainer(dataport.NewInlet(4, nil), dataport.NewSignal(), fifo.New(10), &recordingTaker{})
	require.Equal(t, 7, d.Watermark)
}

func TestDrainerProcessStopsWhenEmpty(t *testing.T) {
	var taker recordingTaker
	d := NewDrainer(dataport.NewInlet(4, nil), dataport.NewSignal(), fifo.New(8), &taker)
	d.Staging().Write([]byte{1, 2})
	require.Equal(t, 2, d.process(5))
	require.Zero(t, d.process(0))
	require.Equal(t, []byte{1, 2}, taker.bytes)
}

func TestDrainerOrderAndCompleteness(t *testing.T) {
	sig := dataport.NewSignal()
	inlet := dataport.NewInlet(33, sig)
	taker := make(chanTaker, 4096)
	d := NewDrainer(inlet, sig, fifo.New(8), taker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	const total = 3000
	input := make([]byte, total)
	for i := range input {
		input[i] = byte(i * 7)
	}
	go func() {
		for off := 0; off < total; {
			n := 1 + off%13
			if off+n > total {
				n = total - off
			}
			if inlet.Cap()-inlet.Len() < n {
				time.Sleep(10 * time.Microsecond)
				continue
			}
			off += inlet.Write(input[off : off+n])
		}
	}()

	for i := 0; i < total; i++ {
		select {
		case b := <-taker:
			require.Equalf(t, input[i], b, "byte[%d] mismatch", i)
		case err := <-errCh:
			t.Fatalf("drainer stopped: %v", err)
		case <-time.After(2 * time.Second):
			t.Fatalf("byte[%d] timeout", i)
		}
	}
	require.False(t, inlet.IsOverflowed())
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestDrainerBlocksWhenIdle(t *testing.T) {
	sig := dataport.NewSignal()
	inlet := dataport.NewInlet(16, sig)
	waiter := newCountingWaiter(sig)
	taker := make(chanTaker, 16)
	d := NewDrainer(inlet, waiter, fifo.New(8), taker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	select {
	case <-waiter.enterCh:
	case <-time.After(time.Second):
		t.Fatal("drainer did not wait")
	}
	select {
	case b := <-taker:
		t.Fatalf("unexpected byte %d", b)
	case err := <-errCh:
		t.Fatalf("drainer stopped: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, int32(1), waiter.waits.Load(), "idle drainer must block, not poll")
	require.Zero(t, d.Staging().Size())

	inlet.Write([]byte{42})
	select {
	case b := <-taker:
		require.Equal(t, byte(42), b)
	case <-time.After(time.Second):
		t.Fatal("byte not processed after signal")
	}

	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("drainer did not stop")
	}
}

func TestDrainerOverflow(t *testing.T) {
	sig := dataport.NewSignal()
	inlet := dataport.NewInlet(4, sig)
	require.Equal(t, 3, inlet.Write([]byte{1, 2, 3, 4, 5}))
	var taker recordingTaker
	metrics := NewMetrics(nil)
	d := NewDrainer(inlet, sig, fifo.New(8), &taker)
	d.Metrics = metrics

	err := d.Run(context.Background())
	require.Equal(t, ErrOverflow, err)
	require.Equal(t, []byte{1, 2, 3}, taker.bytes, "bytes before the overflow are processed")
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.overflows))
	require.Equal(t, float64(3), testutil.ToFloat64(metrics.processed))

	inlet.Write([]byte{6})
	require.Equal(t, ErrOverflow, d.Run(context.Background()))
	require.Equal(t, []byte{1, 2, 3}, taker.bytes, "no draining after overflow")
	require.Equal(t, 1, inlet.Len())
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.overflows), "overflow reported once")
}
