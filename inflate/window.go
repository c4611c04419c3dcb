package inflate

import (
	"io"

	"github.com/pkg/errors"
)

// WindowSize is the DEFLATE history capacity.
const WindowSize = 1 << 15

// Window is a fixed-capacity ring buffer of recently produced bytes. It is the
// only path by which decoded bytes reach the sink: bytes are written into the
// ring and flushed to the sink before they are overwritten.
type Window struct {
	hist [WindowSize]byte

	// Invariant: 0 <= rdPos <= wrPos < WindowSize
	wrPos int // next write position
	rdPos int // hist[rdPos:wrPos] has not been flushed yet

	total int64 // bytes produced since Reset
	sink  io.Writer
}

// NewWindow returns an empty Window flushing into sink.
func NewWindow(sink io.Writer) *Window {
	return &Window{sink: sink}
}

// Reset empties the window and points it at a new sink.
func (w *Window) Reset(sink io.Writer) {
	w.wrPos, w.rdPos, w.total = 0, 0, 0
	w.sink = sink
}

// Total reports the number of bytes produced since Reset.
func (w *Window) Total() int64 {
	return w.total
}

// HistSize reports how many bytes a back-reference may reach.
func (w *Window) HistSize() int {
	if w.total >= WindowSize {
		return WindowSize
	}
	return int(w.total)
}

// Pending reports the number of bytes not yet flushed to the sink.
func (w *Window) Pending() int {
	return w.wrPos - w.rdPos
}

// Append writes one byte.
func (w *Window) Append(b byte) error {
	w.hist[w.wrPos] = b
	w.wrPos++
	w.total++

	if w.wrPos == WindowSize {
		if err := w.Flush(); err != nil {
			return err
		}
		w.wrPos, w.rdPos = 0, 0
	}

	return nil
}

// CopyFromDistance copies length bytes starting distance bytes behind the
// write position. Bytes are copied one at a time so that a length greater than
// the distance repeats bytes produced earlier in the same call.
func (w *Window) CopyFromDistance(distance, length int) error {
	if distance < 1 || distance > w.HistSize() {
		return corruptf("distance %d outside of %d bytes of history", distance, w.HistSize())
	}

	src := w.wrPos - distance
	if src < 0 {
		src += WindowSize
	}

	for i := 0; i < length; i++ {
		if err := w.Append(w.hist[src]); err != nil {
			return err
		}
		src++
		if src == WindowSize {
			src = 0
		}
	}

	return nil
}

// Flush pushes every unflushed byte to the sink.
func (w *Window) Flush() error {
	if w.rdPos == w.wrPos {
		return nil
	}

	if _, err := w.sink.Write(w.hist[w.rdPos:w.wrPos]); err != nil {
		return errors.Wrap(err, "unable to write to sink")
	}
	w.rdPos = w.wrPos

	return nil
}
