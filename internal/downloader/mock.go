package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"streamsnip/internal/consts"
	"streamsnip/internal/entity"
)

const mockSteps = 4

// Mock is a scriptable in-process engine. Its zero value succeeds instantly without writing files.
type Mock struct {
	log *slog.Logger

	// Formats is returned by Probe for every source.
	Formats []entity.Format
	// ProbeErr fails every Probe when set.
	ProbeErr error
	// Delay is how long one Download takes.
	Delay time.Duration
	// Fail decides per request whether Download fails. It may panic to simulate a crashing engine.
	Fail func(req Request) error
	// WriteOutput creates req.Output on success.
	WriteOutput bool

	probes    atomic.Int64
	downloads atomic.Int64
	active    atomic.Int64
	peak      atomic.Int64

	mu       sync.Mutex
	requests []Request
}

var _ Engine = (*Mock)(nil)

// NewMock creates a mock engine.
func NewMock(log *slog.Logger) *Mock {
	return &Mock{log: log.With(slog.String("package", "downloader"), slog.String("engine", consts.EngineMock))}
}

// Probe returns m.Formats.
func (m *Mock) Probe(ctx context.Context, source string) ([]entity.Format, error) {
	m.probes.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.ProbeErr != nil {
		return nil, m.ProbeErr
	}

	return append([]entity.Format(nil), m.Formats...), nil
}

// Download simulates a download in mockSteps progress events spread over m.Delay.
func (m *Mock) Download(ctx context.Context, req Request, onProgress ProgressFunc) error {
	m.downloads.Add(1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	cur := m.active.Add(1)
	defer m.active.Add(-1)

	for {
		peak := m.peak.Load()
		if cur <= peak || m.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	total := int64(mockSteps)

	for step := int64(1); step <= total; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Delay / mockSteps):
		}

		if onProgress != nil {
			onProgress(Progress{Phase: PhaseDownloading, Done: step, Total: total, Percent: float64(step*100) / float64(total)})
		}
	}

	if m.Fail != nil {
		if err := m.Fail(req); err != nil {
			return err
		}
	}

	if onProgress != nil {
		onProgress(Progress{Phase: PhaseFinished, Done: total, Total: total, Percent: 100})
	}

	if m.WriteOutput {
		if err := os.WriteFile(req.Output, []byte("clip"), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	if m.log != nil {
		m.log.DebugContext(ctx, "mock download done", slog.Any("request", req))
	}

	return nil
}

// Probes returns the number of Probe calls.
func (m *Mock) Probes() int64 { return m.probes.Load() }

// Downloads returns the number of Download calls.
func (m *Mock) Downloads() int64 { return m.downloads.Load() }

// Peak returns the highest number of concurrent Download calls observed.
func (m *Mock) Peak() int64 { return m.peak.Load() }

// Requests returns a copy of all download requests.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}
