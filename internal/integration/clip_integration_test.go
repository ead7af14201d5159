//go:build integration

package integration_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"streamsnip/internal/cli"
)

func TestBatchWithCustomFormat(t *testing.T) {
	fx := newFixture(t)

	err := fx.run(t.Context(), "https://youtu.be/okvideo001", "--select", "*", "--pad", "5", "--format", "140", "--keyframes")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	out := filepath.Join(fx.root, "okvideo001", "Nice_Play_1_okvideo001_115_160.m4a")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("clip missing: %v", err)
	}

	args := readLines(t, out+".args")
	for _, want := range []string{"*115-160", "--force-keyframes-at-cuts", "140", "--no-overwrites", "--newline"} {
		if !slices.Contains(args, want) {
			t.Errorf("yt-dlp args lack %q: %v", want, args)
		}
	}

	if slices.Contains(args, "--recode-video") {
		t.Errorf("custom format must not be recoded: %v", args)
	}

	lb := fx.lastBatch(t)
	if lb.Data.Succeeded != 2 || lb.Data.Failed != 0 {
		t.Errorf("last batch = %+v", lb.Data)
	}

	if !strings.Contains(fx.out.String(), "[INFO] 2 succeeded, 0 skipped, 0 failed") {
		t.Errorf("summary missing:\n%s", fx.out)
	}
}

func TestBatchRecodesToContainer(t *testing.T) {
	fx := newFixture(t)

	if err := fx.run(t.Context(), "https://youtu.be/okvideo002", "--select", "2", "--container", "mkv"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := filepath.Join(fx.root, "okvideo002", "Late_Joke_2_okvideo002_600_615.mkv")

	args := readLines(t, out+".args")
	if i := slices.Index(args, "--recode-video"); i < 0 || args[i+1] != "mkv" {
		t.Errorf("recode flag missing: %v", args)
	}
}

func TestRerunSkipsExistingClips(t *testing.T) {
	fx := newFixture(t)

	for range 2 {
		if err := fx.run(t.Context(), "https://youtu.be/okvideo003", "--select", "1"); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	lb := fx.lastBatch(t)
	if lb.Data.Skipped != 1 || lb.Data.Succeeded != 0 {
		t.Errorf("second run = %+v, want one skip", lb.Data)
	}
}

func TestFailedClipRemovesPartial(t *testing.T) {
	fx := newFixture(t)

	err := fx.run(t.Context(), "https://youtu.be/failvideo01", "--select", "1")
	if !errors.Is(err, cli.ErrBatchFailed) {
		t.Fatalf("err = %v, want ErrBatchFailed", err)
	}

	out := filepath.Join(fx.root, "failvideo01", "Nice_Play_1_failvideo01_120_150.mp4")
	if _, err := os.Stat(out + ".part"); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}

	lb := fx.lastBatch(t)
	if lb.Data.Failed != 1 || !strings.Contains(lb.Data.Results[0].Error, "Video unavailable") {
		t.Errorf("last batch = %+v", lb.Data)
	}
}

func TestCanceledBatchStopsEngine(t *testing.T) {
	fx := newFixture(t)

	ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()

	err := fx.run(ctx, "https://youtu.be/slowvideo01", "--select", "1")
	if !errors.Is(err, cli.ErrBatchFailed) {
		t.Fatalf("err = %v, want ErrBatchFailed", err)
	}

	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("cancel took %v", elapsed)
	}
}

func TestMetricsListener(t *testing.T) {
	fx := newFixture(t)

	if err := fx.run(t.Context(), "https://youtu.be/okvideo004", "--select", "1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	status, body := fx.get(t, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}

	for _, want := range []string{
		"streamsnip_clips_completed_total 1",
		`streamsnip_engine_requests_total{engine="ytdlp",op="download",status="ok"} 1`,
		`streamsnip_metadata_fetches_total{status="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics lack %q", want)
		}
	}

	if status, _ := fx.get(t, "/v1/readyz"); status != http.StatusOK {
		t.Errorf("readyz status = %d", status)
	}
}

func TestFormatsListing(t *testing.T) {
	fx := newFixture(t)

	if err := fx.run(t.Context(), "formats", "https://youtu.be/okvideo005"); err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(fx.out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "18") || !strings.HasPrefix(lines[1], "140") {
		t.Errorf("formats:\n%s", fx.out)
	}
}
