package progress_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"streamsnip/internal/consts"
	"streamsnip/internal/progress"
	"streamsnip/pkg/ansi"
)

func TestDisplayRedrawsInPlace(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var buf bytes.Buffer

		table := progress.NewTable(2)
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		d := progress.NewDisplay(log, table, ansi.NewTerminal(&buf, true), progress.DisplayOptions{
			Interval: 200 * time.Millisecond,
			Labels:   []string{"first", "second"},
		})

		d.Start(t.Context())

		table.Set(0, "50.0%")
		time.Sleep(450 * time.Millisecond)

		table.Finish(0, consts.StatusDone)
		table.Finish(1, consts.StatusExists)

		d.Stop()

		out := buf.String()

		// two ticks plus the final frame
		if got := strings.Count(out, "first"); got != 3 {
			t.Errorf("rendered %d frames, want 3:\n%q", got, out)
		}

		if !strings.Contains(out, ansi.CursorUp(2)) {
			t.Errorf("frames are not redrawn in place:\n%q", out)
		}

		if !strings.Contains(out, "50.0%") {
			t.Errorf("intermediate status missing:\n%q", out)
		}

		last := out[strings.LastIndex(out, ansi.CursorUp(2)):]
		if !strings.Contains(last, consts.StatusDone) || !strings.Contains(last, consts.StatusExists) {
			t.Errorf("final frame = %q", last)
		}
	})
}

func TestDisplayNonTTYWritesFinalFrameOnly(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var buf bytes.Buffer

		table := progress.NewTable(2)
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		d := progress.NewDisplay(log, table, ansi.NewTerminal(&buf, false), progress.DisplayOptions{
			Interval: 200 * time.Millisecond,
			Labels:   []string{"a", "b"},
		})

		d.Start(t.Context())
		time.Sleep(time.Second)

		table.Finish(0, consts.StatusDone)
		table.Finish(1, consts.StatusFailedPrefix+"boom")

		d.Stop()

		want := " 1) a  100%\n 2) b  failed: boom\n"
		if got := buf.String(); got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})
}

func TestDisplayStopsPromptly(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		table := progress.NewTable(1)
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		d := progress.NewDisplay(log, table, ansi.NewTerminal(io.Discard, true), progress.DisplayOptions{
			Interval: 200 * time.Millisecond,
		})

		d.Start(context.Background())

		start := time.Now()
		d.Stop()

		if elapsed := time.Since(start); elapsed != 0 {
			t.Errorf("Stop() took %v of fake time", elapsed)
		}
	})
}

func TestDisplayStopWithoutStart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := progress.NewDisplay(log, progress.NewTable(1), ansi.NewTerminal(&buf, false), progress.DisplayOptions{
		Labels: []string{"only"},
	})
	d.Stop()

	if got := buf.String(); got != " 1) only  0%\n" {
		t.Errorf("output = %q", got)
	}
}

func TestDisplayNoColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	table := progress.NewTable(1)
	table.Finish(0, consts.StatusDone)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := progress.NewDisplay(log, table, ansi.NewTerminal(&buf, true), progress.DisplayOptions{
		Labels:  []string{"only"},
		NoColor: true,
	})
	d.Stop()

	if strings.Contains(buf.String(), ansi.Green) || strings.Contains(buf.String(), ansi.Reset) {
		t.Errorf("colored output with NoColor: %q", buf.String())
	}
}

func TestSinkPrintsLogsAboveBlock(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var screen, stderr bytes.Buffer

		sink := progress.NewSink(&stderr)
		log := slog.New(slog.NewTextHandler(sink, nil))

		table := progress.NewTable(2)
		d := progress.NewDisplay(log, table, ansi.NewTerminal(&screen, true), progress.DisplayOptions{
			Interval: 200 * time.Millisecond,
			Labels:   []string{"first", "second"},
		})

		sink.Attach(d)
		d.Start(t.Context())

		time.Sleep(250 * time.Millisecond)

		// written between two redraws, as a failing worker would
		log.Warn("yt-dlp failed", slog.String("stderr", "Video unavailable"))
		_, _ = sink.Write([]byte("partial "))

		time.Sleep(200 * time.Millisecond)

		table.Finish(0, consts.StatusDone)
		table.Finish(1, consts.StatusFailedPrefix+"boom")

		_, _ = sink.Write([]byte("tail\n"))

		d.Stop()
		sink.Detach(d)

		if stderr.Len() != 0 {
			t.Errorf("log output bypassed the display: %q", stderr.String())
		}

		out := screen.String()

		// the log line opens the second frame, right after the cursor moved back over the first one
		if !strings.Contains(out, ansi.CursorUp(2)+ansi.ClearLine+"time=") {
			t.Errorf("log line not printed above the block:\n%q", out)
		}

		if got := strings.Count(out, "yt-dlp failed"); got != 1 {
			t.Errorf("log line printed %d times, want 1:\n%q", got, out)
		}

		// the partial line is held until its newline arrives
		if !strings.Contains(out, ansi.ClearLine+"partial tail\n") {
			t.Errorf("partial log line not joined:\n%q", out)
		}

		// every frame after the first moves up exactly over the two block lines
		if got, want := strings.Count(out, ansi.CursorUp(2)), strings.Count(out, "first")-1; got != want {
			t.Errorf("cursor moved up %d times for %d redraws:\n%q", got, want, out)
		}
	})
}

func TestSinkWritesThroughAfterStop(t *testing.T) {
	t.Parallel()

	var screen, stderr bytes.Buffer

	sink := progress.NewSink(&stderr)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := progress.NewDisplay(log, progress.NewTable(1), ansi.NewTerminal(&screen, true), progress.DisplayOptions{})

	sink.Attach(d)
	d.Stop()

	if _, err := sink.Write([]byte("late\n")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	sink.Detach(d)

	if _, err := sink.Write([]byte("idle\n")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	if got := stderr.String(); got != "late\nidle\n" {
		t.Errorf("stderr = %q, want %q", got, "late\nidle\n")
	}

	if strings.Contains(screen.String(), "late") {
		t.Errorf("log written into the finished block: %q", screen.String())
	}
}

func TestSinkIgnoresNonTerminalDisplay(t *testing.T) {
	t.Parallel()

	var screen, stderr bytes.Buffer

	sink := progress.NewSink(&stderr)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := progress.NewDisplay(log, progress.NewTable(1), ansi.NewTerminal(&screen, false), progress.DisplayOptions{})

	sink.Attach(d)

	if _, err := sink.Write([]byte("line\n")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	d.Stop()

	if stderr.String() != "line\n" || strings.Contains(screen.String(), "line") {
		t.Errorf("stderr = %q, screen = %q", stderr.String(), screen.String())
	}
}
