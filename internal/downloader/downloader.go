// Package downloader drives the media engine that probes sources and cuts clips out of them.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/pkg/calc"
)

const (
	defaultProgressFreq = 200 * time.Millisecond
)

// Engine is the media engine capability surface.
type Engine interface {
	// Probe lists the formats of source without downloading anything.
	Probe(ctx context.Context, source string) ([]entity.Format, error)
	// Download writes the window of source to req.Output.
	// onProgress may be nil; it is called from the engine's own goroutine.
	Download(ctx context.Context, req Request, onProgress ProgressFunc) error
}

// Request describes one clip download.
type Request struct {
	Source string
	Window entity.TimeWindow
	Output string
	// FormatID restricts the download to one format; empty means best with recode to Container.
	FormatID  string
	Container string
	// AlignKeyframes re-encodes around cut points so clips start without blank frames.
	AlignKeyframes bool
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", r.Source),
		slog.Any("window", r.Window),
		slog.String("output", r.Output),
		slog.String("format_id", r.FormatID),
		slog.String("container", r.Container),
		slog.Bool("align_keyframes", r.AlignKeyframes),
	)
}

// Phase is the engine's download phase.
type Phase string

// Download phases.
const (
	PhaseDownloading Phase = "downloading"
	PhaseFinished    Phase = "finished"
)

// Progress is one incremental progress event.
type Progress struct {
	Phase   Phase
	Done    int64
	Total   int64
	Percent float64
	ETA     time.Duration
	Rate    float64 // bytes per second
}

// ProgressFunc receives progress events.
type ProgressFunc func(Progress)

// String renders the event as a progress table status, e.g. "42.0% 1.2MiB/s ETA 12s".
func (p Progress) String() string {
	if p.Phase == PhaseFinished {
		return "processing"
	}

	s := fmt.Sprintf("%.1f%% %s", p.Percent, calc.Rate(p.Rate))
	if p.ETA > 0 {
		s += " ETA " + p.ETA.Round(time.Second).String()
	}

	return s
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (p Progress) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("phase", string(p.Phase)),
		slog.Int64("done", p.Done),
		slog.Int64("total", p.Total),
		slog.Float64("percent", p.Percent),
		slog.Duration("eta", p.ETA),
		slog.Float64("rate", p.Rate),
	)
}

// classifyError maps an engine error to a metrics label.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errs.ErrFormatNotFound):
		return "format"
	default:
		return "process"
	}
}
