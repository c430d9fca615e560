// Package window accumulates per-frame records and flushes fixed-size
// batches to a pluggable storage sink. Memory stays bounded: the buffer
// never exceeds the configured window size, and each flush clears it.
package window

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/trialrun/internal/constants"
	"github.com/nvandessel/trialrun/internal/extract"
)

// Sink persists one serialized window under a deterministic name.
// Implementations must treat a stored window as immutable.
type Sink interface {
	Store(name string, payload []byte) error
}

// Writer buffers frame records in insertion order and flushes exactly one
// window per threshold-many appends. It is owned by the scheduler and is not
// safe for concurrent use.
type Writer struct {
	size    int
	sink    Sink
	order   []int64
	records map[int64]extract.FrameRecord
}

// NewWriter creates a writer flushing every size records. A size of zero
// falls back to the default window size.
func NewWriter(sink Sink, size int) *Writer {
	if size <= 0 {
		size = constants.DefaultWindowSize
	}
	return &Writer{
		size:    size,
		sink:    sink,
		records: make(map[int64]extract.FrameRecord),
	}
}

// Len returns the number of buffered records.
func (w *Writer) Len() int {
	return len(w.records)
}

// Append inserts a record, keyed by frame id, and flushes when the buffer
// reaches the window size. Re-appending an already-buffered frame id
// replaces the record without growing the window.
func (w *Writer) Append(frame int64, rec extract.FrameRecord) error {
	if _, exists := w.records[frame]; !exists {
		w.order = append(w.order, frame)
	}
	w.records[frame] = rec

	if len(w.records) >= w.size {
		return w.Flush()
	}
	return nil
}

// Flush serializes the buffered frames to the sink under a name built from
// the first and last frame ids in the buffer, then clears the buffer. The
// clear happens only after a successful store, so a failed flush keeps the
// records for the next attempt. Flushing an empty buffer is a no-op.
func (w *Writer) Flush() error {
	if len(w.records) == 0 {
		return nil
	}

	name := fmt.Sprintf("%d-%d", w.order[0], w.order[len(w.order)-1])
	payload, err := json.Marshal(w.records)
	if err != nil {
		return fmt.Errorf("serializing window %s: %w", name, err)
	}

	if err := w.sink.Store(name, payload); err != nil {
		return fmt.Errorf("storing window %s: %w", name, err)
	}

	w.order = w.order[:0]
	w.records = make(map[int64]extract.FrameRecord, w.size)
	return nil
}
