package progress

import (
	"io"
	"sync"
)

// Sink is a log writer that shares a terminal with a Display.
// While a display is attached, log output is printed above its block on the next redraw
// instead of being interleaved with it; otherwise it goes straight to out.
type Sink struct {
	out io.Writer

	mu      sync.Mutex
	display *Display
}

// NewSink returns a sink writing to out while no display is attached.
func NewSink(out io.Writer) *Sink {
	return &Sink{out: out}
}

// Attach routes log output through d until Detach.
func (s *Sink) Attach(d *Display) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.display = d
}

// Detach stops routing through d. It is a no-op when another display is attached.
func (s *Sink) Detach(d *Display) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.display == d {
		s.display = nil
	}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.display != nil && s.display.enqueue(p) {
		return len(p), nil
	}

	return s.out.Write(p)
}
