package progress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"streamsnip/internal/consts"
	"streamsnip/pkg/ansi"
)

// DisplayOptions configures a Display.
type DisplayOptions struct {
	// Interval between redraws; defaults to consts.DefaultDisplayInterval.
	Interval time.Duration
	// Labels[i] names slot i.
	Labels []string
	// NoColor disables status colors even on a terminal.
	NoColor bool
}

// Display periodically redraws the whole table in place.
// On a non-terminal output only the final frame is written.
type Display struct {
	log      *slog.Logger
	table    *Table
	term     ansi.Terminal
	painter  ansi.Painter
	interval time.Duration
	labels   []string

	mu       sync.Mutex
	drawn    int          // lines written by the previous frame
	pending  bytes.Buffer // log output printed above the next frame
	finished bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewDisplay creates a display for table.
func NewDisplay(log *slog.Logger, table *Table, term ansi.Terminal, opts DisplayOptions) *Display {
	interval := opts.Interval
	if interval <= 0 {
		interval = consts.DefaultDisplayInterval
	}

	return &Display{
		log:      log.With(slog.String("package", "progress")),
		table:    table,
		term:     term,
		painter:  ansi.Painter{Enabled: term.TTY && !opts.NoColor},
		interval: interval,
		labels:   opts.Labels,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the redraw loop. It returns immediately.
func (d *Display) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.loop(ctx)
	})
}

// Stop signals the loop, waits for it to exit and draws the final frame.
// Log output queued until then is printed above it.
func (d *Display) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})

	d.startOnce.Do(func() { close(d.done) })
	<-d.done

	d.render(true)
}

func (d *Display) loop(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			d.log.DebugContext(ctx, "display loop canceled", slog.Any("error", ctx.Err()))

			return
		case <-ticker.C:
			if d.term.TTY {
				d.render(false)
			}
		}
	}
}

// enqueue holds p until the next frame. It reports false when p must be written elsewhere:
// the output is not a terminal or the final frame is already drawn.
func (d *Display) enqueue(p []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.term.TTY || d.finished {
		return false
	}

	d.pending.Write(p)

	return true
}

func (d *Display) render(final bool) {
	lines := d.frame()

	d.mu.Lock()

	var b strings.Builder

	if d.term.TTY {
		b.WriteString(ansi.CursorUp(d.drawn))
	}

	// complete log lines scroll away above the block; a partial line waits for its newline
	var logs []byte

	switch n := bytes.LastIndexByte(d.pending.Bytes(), '\n'); {
	case final:
		logs = d.pending.Bytes()
		d.pending.Reset()
	case n >= 0:
		logs = d.pending.Next(n + 1)
	}

	for line := range strings.Lines(string(logs)) {
		b.WriteString(ansi.ClearLine)
		b.WriteString(strings.TrimSuffix(line, "\n"))
		b.WriteByte('\n')
	}

	for _, line := range lines {
		if d.term.TTY {
			b.WriteString(ansi.ClearLine)
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	d.drawn = len(lines)
	d.finished = d.finished || final

	_, err := io.WriteString(d.term.Out, b.String())

	d.mu.Unlock()

	// logged after unlocking: the log output may be routed back through enqueue
	if err != nil {
		d.log.Warn("render progress", slog.Any("error", err))
	}
}

func (d *Display) frame() []string {
	statuses := d.table.Snapshot()
	width := d.term.Width()

	labelWidth := 0
	for _, l := range d.labels {
		labelWidth = max(labelWidth, utf8.RuneCountInString(l))
	}

	lines := make([]string, len(statuses))

	for slot, status := range statuses {
		label := ""
		if slot < len(d.labels) {
			label = d.labels[slot]
		}

		line := truncate(fmt.Sprintf("%2d) %-*s  %s", slot+1, labelWidth, label, status), width)
		lines[slot] = d.colorize(line, status)
	}

	return lines
}

func (d *Display) colorize(line, status string) string {
	switch {
	case status == consts.StatusDone:
		return d.painter.Paint(ansi.Green, line)
	case status == consts.StatusExists:
		return d.painter.Paint(ansi.Yellow, line)
	case strings.HasPrefix(status, consts.StatusFailedPrefix):
		return d.painter.Paint(ansi.Red, line)
	default:
		return line
	}
}

// truncate cuts s to width runes; width 0 means unlimited.
func truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) < width {
		return s
	}

	runes := []rune(s)

	return string(runes[:width-1])
}
