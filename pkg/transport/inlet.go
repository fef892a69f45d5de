package transport

import (
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/chanmux/pkg/dataport"
)

// InletWriter writes into an Inlet. At most one InletWriter may write an
// Inlet at a time.
type InletWriter struct {
	Inlet *dataport.Inlet
}

// Write implements io.Writer. Bytes that do not fit are dropped, the inlet
// is marked overflowed and io.ErrShortWrite is returned.
func (w *InletWriter) Write(p []byte) (int, error) {
	n := w.Inlet.Write(p)
	if n < len(p) {
		glog.V(3).Infof("inlet full: stored %d of %d bytes", n, len(p))
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Feed copies from r into the inlet using buf until r fails.
// An inlet overflow does not stop feeding: the drain worker reports it.
func Feed(r io.Reader, inlet *dataport.Inlet, buf []byte) error {
	w := &InletWriter{Inlet: inlet}
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
		}
		if err != nil {
			return err
		}
	}
}
