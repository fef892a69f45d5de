package chanmux

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/chanmux/pkg/dataport"
	"github.com/robotalks/chanmux/pkg/fifo"
)

type recordWriter struct {
	writes [][]byte
	err    error
	short  bool
	lock   sync.Mutex
}

func (w *recordWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	if w.short {
		return len(p) / 2, nil
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (w *recordWriter) all() []byte {
	w.lock.Lock()
	defer w.lock.Unlock()
	return bytes.Join(w.writes, nil)
}

// slowWriter appends byte by byte and yields in between, exposing any
// concurrent writers.
type slowWriter struct {
	out  []byte
	lock sync.Mutex
}

func (w *slowWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		w.lock.Lock()
		w.out = append(w.out, b)
		w.lock.Unlock()
		runtime.Gosched()
	}
	return len(p), nil
}

type inletWriter struct {
	inlet *dataport.Inlet
}

func (w *inletWriter) Write(p []byte) (int, error) {
	if n := w.inlet.Write(p); n < len(p) {
		return n, io.ErrShortWrite
	}
	return len(p), nil
}

func testChannels(ids ...ChannelID) []ChannelConfig {
	chs := make([]ChannelConfig, len(ids))
	for n, id := range ids {
		chs[n].ID = id
	}
	return chs
}

func newTestMux(t *testing.T, conf Config, w io.Writer) *ChanMux {
	if conf.Channels == nil {
		conf.Channels = testChannels(1, 2)
	}
	m, err := New(conf, Lower{Inlet: dataport.NewInlet(64, dataport.NewSignal()), Writer: w})
	require.NoError(t, err)
	return m
}

func feed(m *ChanMux, bs ...byte) {
	for _, b := range bs {
		m.TakeByte(b)
	}
}

func TestNewConfigErrors(t *testing.T) {
	inlet := dataport.NewInlet(8, dataport.NewSignal())
	lower := Lower{Inlet: inlet, Writer: &recordWriter{}}
	testCases := []struct {
		name  string
		conf  Config
		lower Lower
		field string
	}{
		{"no channels", Config{}, lower, "channels"},
		{"duplicated channel", Config{Channels: testChannels(1, 1)}, lower, "channels"},
		{"negative rx size", Config{Channels: []ChannelConfig{{ID: 1, RxSize: -1}}}, lower, "channels"},
		{"negative staging", Config{Channels: testChannels(1), StagingSize: -1}, lower, "staging size"},
		{"watermark", Config{Channels: testChannels(1), WatermarkPercent: 100}, lower, "watermark"},
		{"max payload", Config{Channels: testChannels(1), MaxPayload: MaxPayloadLimit + 1}, lower, "max payload"},
		{"no inlet", Config{Channels: testChannels(1)}, Lower{Writer: &recordWriter{}}, "lower"},
		{"no signal", Config{Channels: testChannels(1)}, Lower{Inlet: dataport.NewInlet(8, nil), Writer: &recordWriter{}}, "lower"},
		{"no writer", Config{Channels: testChannels(1)}, Lower{Inlet: inlet}, "lower"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := New(tc.conf, tc.lower)
			require.Nil(t, m)
			var confErr *ConfigError
			require.True(t, errors.As(err, &confErr), "expect ConfigError, got %v", err)
			require.Equal(t, tc.field, confErr.Field)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	m := newTestMux(t, Config{Channels: testChannels(5, 1, 3)}, &recordWriter{})
	require.Equal(t, []ChannelID{1, 3, 5}, m.Channels())
	require.Equal(t, DefaultStagingSize, m.Drainer().Staging().Capacity())
	require.Equal(t, 1536, m.Drainer().Watermark)
	ch, err := m.Channel(3)
	require.NoError(t, err)
	require.Equal(t, DefaultRxSize, ch.Capacity())
	_, err = m.Channel(4)
	require.True(t, errors.Is(err, ErrInvalidChannel))
}

func TestWatermarkMatchesDrainer(t *testing.T) {
	for _, size := range []int{8, 10, 13, 2048} {
		m := newTestMux(t, Config{StagingSize: size}, &recordWriter{})
		d := NewDrainer(dataport.NewInlet(4, nil), dataport.NewSignal(), fifo.New(size), &recordingTaker{})
		require.Equalf(t, d.Watermark, m.Drainer().Watermark, "staging %d", size)
	}
}

func TestNotReady(t *testing.T) {
	var m *ChanMux
	_, err := m.Write(1, []byte{1})
	require.Equal(t, ErrNotReady, err)
	_, err = m.NewSession()
	require.Equal(t, ErrNotReady, err)
	_, err = m.Channel(1)
	require.Equal(t, ErrNotReady, err)
	require.Equal(t, ErrNotReady, m.Run(context.Background()))
	require.Nil(t, m.Channels())

	var s *Session
	_, err = s.Write(1, 1)
	require.Equal(t, ErrNotReady, err)
	_, err = s.Read(1, 1)
	require.Equal(t, ErrNotReady, err)
	require.Equal(t, ErrNotReady, s.Wait(context.Background(), 1))
}

func TestTakeByteDispatch(t *testing.T) {
	metrics := NewMetrics(nil)
	m := newTestMux(t, Config{Channels: []ChannelConfig{{ID: 1}, {ID: 2, RxSize: 4}}, Metrics: metrics}, &recordWriter{})
	s, err := m.NewSession()
	require.NoError(t, err)

	feed(m, 1, 0, 3, 'a', 'b', 'c')
	feed(m, 7, 9)                      // not a channel: absorbed
	feed(m, 2, 0, 6, 1, 2, 3, 4, 5, 6) // only 4 fit
	feed(m, 1, 0, 2, 'd', 'e')

	n, err := s.Read(1, 16)
	require.NoError(t, err)
	require.Equal(t, []byte("abcde"), s.ReadPort().Buf()[:n])

	n, err = s.Read(2, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, s.ReadPort().Buf()[:n])
	n, err = s.Read(2, 16)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4}, s.ReadPort().Buf()[:n])

	n, err = s.Read(1, 16)
	require.NoError(t, err)
	require.Zero(t, n, "read never blocks")

	require.Equal(t, float64(2), testutil.ToFloat64(metrics.frames.WithLabelValues("1")))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.rxDropped.WithLabelValues("2")))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.resyncs))
}

func TestSessionWrite(t *testing.T) {
	w := &recordWriter{}
	metrics := NewMetrics(nil)
	m := newTestMux(t, Config{Metrics: metrics, DataportSize: 8}, w)
	s, err := m.NewSession()
	require.NoError(t, err)
	require.Equal(t, 8, s.WritePort().Size())

	copy(s.WritePort().Buf(), "hello")
	n, err := s.Write(2, 5)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, [][]byte{{2, 0, 5, 'h', 'e', 'l', 'l', 'o'}}, w.writes)
	require.Equal(t, float64(5), testutil.ToFloat64(metrics.txBytes.WithLabelValues("2")))

	n, err = s.Write(2, 0)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.Write(2, 9)
	require.True(t, errors.Is(err, ErrBounds), "got %v", err)
	require.Zero(t, n)
	_, err = s.Read(2, 9)
	require.True(t, errors.Is(err, ErrBounds), "got %v", err)
	_, err = s.Write(2, -1)
	require.True(t, errors.Is(err, ErrBounds), "got %v", err)

	_, err = s.Write(3, 1)
	require.True(t, errors.Is(err, ErrInvalidChannel), "got %v", err)
	_, err = s.Read(3, 1)
	require.True(t, errors.Is(err, ErrInvalidChannel), "got %v", err)

	require.Len(t, w.writes, 1, "rejected calls must not reach the transport")
}

func TestWriteSplitsFrames(t *testing.T) {
	w := &recordWriter{}
	m := newTestMux(t, Config{MaxPayload: 4}, w)
	n, err := m.Write(1, []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, [][]byte{{1, 0, 4, 1, 2, 3, 4, 1, 0, 2, 5, 6}}, w.writes)
}

func TestWriteTransportFailure(t *testing.T) {
	for _, w := range []*recordWriter{{short: true}, {err: io.ErrClosedPipe}} {
		m := newTestMux(t, Config{}, w)
		n, err := m.Write(1, []byte{1, 2, 3})
		require.Zero(t, n)
		var tErr *TransportError
		require.True(t, errors.As(err, &tErr), "got %v", err)
		require.Equal(t, 6, tErr.Length)
		if w.err != nil {
			require.True(t, errors.Is(err, io.ErrClosedPipe))
		} else {
			require.True(t, errors.Is(err, io.ErrShortWrite))
		}
	}
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	w := &slowWriter{}
	m := newTestMux(t, Config{Channels: testChannels(1, 2, 3)}, w)
	const rounds = 20
	payloads := map[ChannelID][]byte{
		1: bytes.Repeat([]byte{0x11}, 50),
		2: bytes.Repeat([]byte{0x22}, 70),
		3: bytes.Repeat([]byte{0x33}, 30),
	}
	var wg sync.WaitGroup
	for id, p := range payloads {
		wg.Add(1)
		go func(id ChannelID, p []byte) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, err := m.Write(id, p)
				if err != nil {
					t.Errorf("channel %d write: %v", id, err)
					return
				}
			}
		}(id, p)
	}
	wg.Wait()

	parser := Parser{IsValid: func(id ChannelID) bool { return payloads[id] != nil }}
	counts := make(map[ChannelID]int)
	for i, b := range w.out {
		pr := parser.Parse(b)
		require.Falsef(t, pr.Resync, "byte[%d] broke framing", i)
		if f := pr.Frame; f != nil {
			require.Equalf(t, payloads[f.Channel], f.Payload, "frame ending at byte[%d] mismatch", i)
			counts[f.Channel]++
		}
	}
	require.Equal(t, StateAwaitHeader, parser.State())
	for id := range payloads {
		require.Equalf(t, rounds, counts[id], "channel %d frame count", id)
	}
}

func TestEndToEnd(t *testing.T) {
	sigB := dataport.NewSignal()
	inletB := dataport.NewInlet(128, sigB)
	a, err := New(Config{Channels: testChannels(1, 2)}, Lower{
		Inlet:  dataport.NewInlet(128, dataport.NewSignal()),
		Writer: &inletWriter{inlet: inletB},
	})
	require.NoError(t, err)
	b, err := New(Config{Channels: testChannels(1, 2), StagingSize: 16}, Lower{
		Inlet:  inletB,
		Writer: &recordWriter{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	sa, err := a.NewSession()
	require.NoError(t, err)
	sb, err := b.NewSession()
	require.NoError(t, err)

	copy(sa.WritePort().Buf(), "ping")
	_, err = sa.Write(2, 4)
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	var got []byte
	for len(got) < 4 {
		n, err := sb.Read(2, 4)
		require.NoError(t, err)
		got = append(got, sb.ReadPort().Buf()[:n]...)
		if len(got) < 4 {
			require.NoError(t, sb.Wait(waitCtx, 2))
		}
	}
	require.Equal(t, []byte("ping"), got)

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}
