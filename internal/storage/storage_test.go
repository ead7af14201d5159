package storage_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"streamsnip/internal/config"
	"streamsnip/internal/entity"
	"streamsnip/internal/storage"
	"streamsnip/pkg/ptr"
)

func newTestStorer(t *testing.T, root string) storage.Storer {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Dir: config.Dir{Clips: root}}

	return storage.New(log, cfg, nil)
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		root   string
		clip   entity.Clip
		window entity.TimeWindow
		ext    string
		want   string
	}{
		{
			name:   "reference clip",
			root:   "clips",
			clip:   entity.Clip{ID: "1", StreamID: "abc", Message: "Nice Play", ClipTime: 120, Delay: ptr.Of(-30.0)},
			window: entity.TimeWindow{Start: 115, End: 160},
			ext:    "mp4",
			want:   filepath.Join("clips", "abc", "Nice_Play_1_abc_115_160.mp4"),
		},
		{
			name:   "custom format extension",
			root:   "/tmp/out",
			clip:   entity.Clip{ID: "42", StreamID: "s1", Message: "gg"},
			window: entity.TimeWindow{Start: 0, End: 60},
			ext:    "webm",
			want:   filepath.Join("/tmp/out", "s1", "gg_42_s1_0_60.webm"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := storage.OutputPath(tc.root, tc.clip, tc.window, tc.ext)
			if got != tc.want {
				t.Errorf("OutputPath() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	stg := newTestStorer(t, root)

	path := stg.Path(entity.Clip{ID: "1", StreamID: "abc", Message: "x"}, entity.TimeWindow{Start: 1, End: 2}, "mp4")

	for range 2 {
		if err := stg.Prepare(t.Context(), path); err != nil {
			t.Fatalf("Prepare() failed: %v", err)
		}
	}

	info, err := os.Stat(filepath.Join(root, "abc"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected clip dir to exist: %v", err)
	}
}

func TestPrepareFailsOnFileInTheWay(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	stg := newTestStorer(t, root)

	// a regular file named like the stream dir makes MkdirAll fail with ENOTDIR
	if err := os.WriteFile(filepath.Join(root, "abc"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	path := stg.Path(entity.Clip{ID: "1", StreamID: "abc", Message: "x"}, entity.TimeWindow{Start: 1, End: 2}, "mp4")

	if err := stg.Prepare(t.Context(), path); err == nil {
		t.Fatal("expected Prepare() to fail")
	}
}

func TestExists(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	stg := newTestStorer(t, root)

	file := filepath.Join(root, "clip.mp4")
	if stg.Exists(file) {
		t.Fatal("Exists() = true before file was written")
	}

	if err := os.WriteFile(file, []byte("data"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !stg.Exists(file) {
		t.Fatal("Exists() = false after file was written")
	}

	if stg.Exists(root) {
		t.Fatal("Exists() = true for a directory")
	}
}
