// Package catalog caches the selectable formats of each source for the lifetime of the process.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"streamsnip/internal/consts"
	"streamsnip/internal/downloader"
	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/internal/observability"
	"streamsnip/pkg/urls"

	"golang.org/x/sync/singleflight"
)

// Prober is the part of the media engine the catalog needs.
type Prober interface {
	Probe(ctx context.Context, source string) ([]entity.Format, error)
}

var _ Prober = downloader.Engine(nil)

// Catalog probes each source at most once per key and keeps the best formats.
// Concurrent first lookups of the same key share one probe; failed probes are not cached.
type Catalog struct {
	log     *slog.Logger
	prober  Prober
	metrics *observability.Metrics

	mu    sync.RWMutex
	cache map[string][]entity.Format
	group singleflight.Group
}

// New creates an empty catalog.
func New(log *slog.Logger, prober Prober, metrics *observability.Metrics) *Catalog {
	return &Catalog{
		log:     log.With(slog.String("package", "catalog")),
		prober:  prober,
		metrics: metrics,
		cache:   make(map[string][]entity.Format),
	}
}

// Get returns up to consts.TopFormats formats of source, best first.
// Failures wrap errs.ErrFormatProbeFailed.
func (c *Catalog) Get(ctx context.Context, source string) ([]entity.Format, error) {
	key := cacheKey(source)

	c.mu.RLock()
	formats, ok := c.cache[key]
	c.mu.RUnlock()

	if ok {
		c.metrics.RecordCatalogHit()

		return slices.Clone(formats), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		raw, err := c.prober.Probe(ctx, source)
		if err != nil {
			c.metrics.RecordProbe("error")

			return nil, err
		}

		c.metrics.RecordProbe("ok")

		top := Select(raw, consts.TopFormats)

		c.mu.Lock()
		c.cache[key] = top
		c.mu.Unlock()

		return top, nil
	})
	if err != nil {
		c.log.WarnContext(ctx, "format probe failed", slog.String("source", source), slog.Any("error", err))

		return nil, fmt.Errorf("%w: %s: %w", errs.ErrFormatProbeFailed, source, err)
	}

	top, _ := v.([]entity.Format)

	c.log.DebugContext(ctx, "formats probed",
		slog.String("key", key), slog.Int("formats", len(top)), slog.Bool("shared", shared))

	return slices.Clone(top), nil
}

// Lookup returns the cached format with the given id, probing source first if needed.
func (c *Catalog) Lookup(ctx context.Context, source, formatID string) (entity.Format, error) {
	formats, err := c.Get(ctx, source)
	if err != nil {
		return entity.Format{}, err
	}

	i := slices.IndexFunc(formats, func(f entity.Format) bool { return f.ID == formatID })
	if i < 0 {
		return entity.Format{}, fmt.Errorf("%w: %q", errs.ErrFormatNotFound, formatID)
	}

	return formats[i], nil
}

// Select drops formats without a note, reverses the engine's worst-first order and keeps n.
func Select(formats []entity.Format, n int) []entity.Format {
	out := make([]entity.Format, 0, min(len(formats), n))

	for _, f := range slices.Backward(formats) {
		if len(out) == n {
			break
		}

		if f.Note == "" {
			continue
		}

		out = append(out, f)
	}

	return out
}

// cacheKey prefers the video id so that different URLs of one video share an entry.
func cacheKey(source string) string {
	if id, err := urls.VideoID(source); err == nil {
		return id
	}

	return source
}
