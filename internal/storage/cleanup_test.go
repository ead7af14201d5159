package storage_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestCleanupPartial(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	stg := newTestStorer(t, root)

	output := filepath.Join(root, "Nice_Play_1_abc_115_160.mp4")

	files := map[string]bool{ // name : should survive
		"Nice_Play_1_abc_115_160.mp4.part":        false,
		"Nice_Play_1_abc_115_160.mp4.part-Frag3":  false,
		"Nice_Play_1_abc_115_160.mp4.ytdl":        false,
		"Nice_Play_1_abc_115_160.mp4":             true,
		"Other_2_abc_0_60.mp4.part":               true,
		"Nice_Play_1_abc_115_160.mp4.description": true,
	}

	for name := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	deleted := stg.CleanupPartial(t.Context(), output)
	if deleted != 3 {
		t.Errorf("CleanupPartial() deleted %d files, want 3", deleted)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}

	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}

	for name, survive := range files {
		if got := slices.Contains(left, name); got != survive {
			t.Errorf("%s present = %v, want %v", name, got, survive)
		}
	}
}

func TestCleanupPartialMissingDir(t *testing.T) {
	t.Parallel()

	stg := newTestStorer(t, t.TempDir())

	if got := stg.CleanupPartial(t.Context(), filepath.Join(t.TempDir(), "nope", "x.mp4")); got != 0 {
		t.Errorf("CleanupPartial() = %d, want 0", got)
	}
}
