// Package storage places clips on disk and decides whether a clip was already produced.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"streamsnip/internal/config"
	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/internal/observability"
)

const dirPerm = 0o755

// Storer defines the interface for clip file placement.
type Storer interface {
	// Path returns the output path of a clip without touching the filesystem.
	Path(clip entity.Clip, window entity.TimeWindow, ext string) string
	// Prepare creates the directory that will hold path.
	Prepare(ctx context.Context, path string) error
	// Exists reports whether a finished clip is already at path.
	Exists(path string) bool
	// CleanupPartial removes engine leftovers of a failed download at path.
	CleanupPartial(ctx context.Context, path string) int
}

type storage struct {
	log     *slog.Logger
	root    string
	metrics *observability.Metrics
}

var _ Storer = (*storage)(nil)

// New creates a new storage rooted at cfg.Dir.Clips.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) Storer {
	return &storage{
		log:     log.With(slog.String("package", "storage")),
		root:    cfg.Dir.Clips,
		metrics: metrics,
	}
}

// OutputPath builds root/<stream_id>/<desc>_<id>_<stream_id>_<start>_<end>.<ext>.
func OutputPath(root string, clip entity.Clip, window entity.TimeWindow, ext string) string {
	name := fmt.Sprintf("%s_%s_%s_%d_%d.%s",
		clip.Description(), clip.ID, clip.StreamID, window.Start, window.End, ext)

	return filepath.Join(root, clip.StreamID, name)
}

func (stg *storage) Path(clip entity.Clip, window entity.TimeWindow, ext string) string {
	return OutputPath(stg.root, clip, window, ext)
}

func (stg *storage) Prepare(ctx context.Context, path string) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, dirPerm)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		stg.log.ErrorContext(ctx, "create clip dir", slog.String("dir", dir), slog.Any("error", err))

		return fmt.Errorf("%w: create %s: %w", errs.ErrFilesystem, dir, err)
	}

	return nil
}

func (stg *storage) Exists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
