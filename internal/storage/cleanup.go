package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// partialSuffixes are the engine's in-flight artifacts next to the final file.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// CleanupPartial removes leftovers of an unfinished download and returns how many files were deleted.
// The final output itself is kept untouched.
func (stg *storage) CleanupPartial(ctx context.Context, path string) int {
	log := stg.log.With(slog.String("action", "cleanup_partial"), slog.String("path", path))

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.ErrorContext(ctx, "read clip dir", slog.Any("error", err))
		}

		return 0
	}

	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() || !isPartial(base, entry.Name()) {
			continue
		}

		file := filepath.Join(dir, entry.Name())

		err := os.Remove(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.ErrorContext(ctx, "failed to delete partial file", slog.String("file", file), slog.Any("error", err))

			continue
		}

		deleted++

		log.DebugContext(ctx, "deleted partial file", slog.String("file", file))
	}

	if deleted > 0 && stg.metrics != nil {
		stg.metrics.RecordCleanup(deleted)
	}

	return deleted
}

// isPartial matches <base>.part, <base>.part-Frag12, <base>.ytdl and <base>.temp.
func isPartial(base, name string) bool {
	rest, ok := strings.CutPrefix(name, base)
	if !ok {
		return false
	}

	for _, suffix := range partialSuffixes {
		if strings.HasPrefix(rest, suffix) {
			return true
		}
	}

	return false
}
