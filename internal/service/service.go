// Package service runs clip batches: a bounded worker pool cuts every selected clip
// while a display loop renders the shared progress table.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"streamsnip/internal/catalog"
	"streamsnip/internal/config"
	"streamsnip/internal/consts"
	"streamsnip/internal/downloader"
	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/internal/observability"
	"streamsnip/internal/progress"
	"streamsnip/internal/storage"
	"streamsnip/pkg/ansi"
	"streamsnip/pkg/gen"
	"streamsnip/pkg/urls"
)

// Batch is one set of clips cut from the same source with the same options.
type Batch struct {
	Source string
	// Clips in selection order; slot i is Clips[i].
	Clips   []entity.Clip
	Padding float64
	// FormatID picks a catalog format; the output extension then comes from that format.
	FormatID string
	// Container is the output extension when FormatID is empty.
	Container      string
	AlignKeyframes bool
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (b Batch) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", b.Source),
		slog.Int("clips", len(b.Clips)),
		slog.Float64("padding", b.Padding),
		slog.String("format_id", b.FormatID),
		slog.String("container", b.Container),
		slog.Bool("align_keyframes", b.AlignKeyframes),
	)
}

// Clipper runs batches.
type Clipper interface {
	// Run blocks until every clip of the batch reached a terminal state.
	// Per-clip failures are reported in the summary, not as an error.
	Run(ctx context.Context, batch Batch) (entity.Summary, error)
	// Last returns the summary of the most recently finished batch.
	Last() (entity.Summary, bool)
}

type clipper struct {
	log     *slog.Logger
	cfg     *config.Config
	engine  downloader.Engine
	catalog *catalog.Catalog
	storer  storage.Storer
	metrics *observability.Metrics
	term    ansi.Terminal
	sink    *progress.Sink

	mu   sync.Mutex
	last *entity.Summary
}

var _ Clipper = (*clipper)(nil)

// New creates a clipper. Progress is rendered to term.
// When sink is not nil, log output written to it during a batch is printed above the progress block.
func New(
	log *slog.Logger,
	cfg *config.Config,
	engine downloader.Engine,
	catalog *catalog.Catalog,
	storer storage.Storer,
	metrics *observability.Metrics,
	term ansi.Terminal,
	sink *progress.Sink,
) Clipper {
	return &clipper{
		log:     log.With(slog.String("package", "service")),
		cfg:     cfg,
		engine:  engine,
		catalog: catalog,
		storer:  storer,
		metrics: metrics,
		term:    term,
		sink:    sink,
	}
}

type task struct {
	slot int
	clip entity.Clip
}

func (svc *clipper) Run(ctx context.Context, batch Batch) (entity.Summary, error) {
	if len(batch.Clips) == 0 {
		return entity.Summary{}, errs.ErrNoSelection
	}

	if batch.Padding < 0 || math.IsNaN(batch.Padding) || math.IsInf(batch.Padding, 0) {
		return entity.Summary{}, fmt.Errorf("%w: %v", errs.ErrInvalidPadding, batch.Padding)
	}

	if batch.FormatID == "" && batch.Container == "" {
		batch.Container = consts.DefaultContainer
	}

	n := len(batch.Clips)
	ids := make([]string, n)
	labels := make([]string, n)

	for i, clip := range batch.Clips {
		ids[i] = string(clip.ID)
		labels[i] = fmt.Sprintf("%s [%s]", clip.Message, clip.ID)
	}

	videoID, err := urls.VideoID(batch.Source)
	if err != nil {
		videoID = batch.Source
	}

	summary := entity.Summary{BatchID: gen.BatchID(videoID, ids)}
	log := svc.log.With(slog.String("batch_id", summary.BatchID))

	log.InfoContext(ctx, "batch started", slog.Any("batch", batch))
	svc.metrics.RecordBatch()

	table := progress.NewTable(n)
	display := progress.NewDisplay(log, table, svc.term, progress.DisplayOptions{
		Interval: svc.cfg.Display.Interval,
		Labels:   labels,
		NoColor:  !svc.cfg.Display.Colors(),
	})

	if svc.sink != nil {
		svc.sink.Attach(display)
		defer svc.sink.Detach(display)
	}

	display.Start(ctx)

	queue := make(chan task, n)
	for slot, clip := range batch.Clips {
		queue <- task{slot: slot, clip: clip}
	}

	close(queue)

	results := make([]entity.ClipResult, n)

	var wg sync.WaitGroup
	for id := range svc.poolSize(n) {
		wg.Go(func() {
			svc.worker(ctx, log.With(slog.Int("worker_id", id)), batch, table, queue, results)
		})
	}

	wg.Wait()
	display.Stop()

	for _, res := range results {
		summary.Add(res)
	}

	log.InfoContext(ctx, "batch finished", slog.Any("summary", summary))

	svc.mu.Lock()
	svc.last = &summary
	svc.mu.Unlock()

	return summary, nil
}

func (svc *clipper) Last() (entity.Summary, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.last == nil {
		return entity.Summary{}, false
	}

	return *svc.last, true
}

// poolSize returns min(workers, n) where workers is the configured bound, default consts.DefaultPoolSize.
func (svc *clipper) poolSize(n int) int {
	workers := svc.cfg.Job.Workers
	if workers <= 0 {
		workers = consts.DefaultPoolSize
	}

	return max(min(workers, n), 1)
}

func (svc *clipper) worker(
	ctx context.Context,
	log *slog.Logger,
	batch Batch,
	table *progress.Table,
	queue <-chan task,
	results []entity.ClipResult,
) {
	for t := range queue {
		results[t.slot] = svc.process(ctx, log, batch, table, t)
	}
}
