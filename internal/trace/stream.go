package trace

import (
	"io"
	"sync"
)

// StreamTracer writes events to an io.Writer as they arrive.
type StreamTracer struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
	f     *formatter
	first bool
	err   error
}

// NewStreamTracer creates a StreamTracer. format must not be FormatAuto.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	st := &StreamTracer{w: w, level: level, f: newFormatter(format), first: true}
	st.err = st.f.header(w)
	return st
}

// Emit writes an event. Write failures are kept for Flush and never
// interrupt lowering.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	ev.Seq = NextSeq()
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.f.write(t.w, ev, t.first); err != nil && t.err == nil {
		t.err = err
	}
	t.first = false
}

// Flush reports the first write error and flushes buffered writers.
func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	err := t.err
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if fl, ok := t.w.(interface{ Flush() error }); ok {
		return fl.Flush()
	}
	return nil
}

// Close writes the format footer and closes the writer if it is a Closer.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if err := t.f.footer(t.w); err != nil && t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
