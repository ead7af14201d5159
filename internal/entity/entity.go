// Package entity defines the core entities used in the application.
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"streamsnip/pkg/ptr"
)

// ClipID is a clip identifier. The provider sends it either as a number or as a string.
type ClipID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *ClipID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("clip id: %w", err)
		}

		*id = ClipID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("clip id: %w", err)
	}

	*id = ClipID(n.String())

	return nil
}

// Clip is a clip descriptor as returned by the metadata provider.
type Clip struct {
	ID       ClipID   `json:"id"`
	StreamID string   `json:"stream_id"`
	Message  string   `json:"message"`
	ClipTime float64  `json:"clip_time"`
	Delay    *float64 `json:"delay"`
}

// Duration returns the clip length in seconds, derived from the delay.
// A missing, zero or positive delay yields defaultDelay, so the window never ends before it starts.
func (c Clip) Duration(defaultDelay float64) float64 {
	delay := ptr.Deref(c.Delay)
	if delay >= 0 {
		delay = defaultDelay
	}

	return -delay
}

// Window returns the absolute time window of the clip widened by pad seconds on each side.
// The start is clamped at zero; the end keeps its unclamped position.
func (c Clip) Window(pad, defaultDelay float64) TimeWindow {
	start := int64(math.Floor(c.ClipTime - pad))
	end := start + int64(c.Duration(defaultDelay)+2*pad)

	return TimeWindow{Start: max(start, 0), End: end}
}

// Description returns the clip message with whitespace replaced by underscores.
func (c Clip) Description() string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}

		return r
	}, c.Message)
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (c Clip) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", string(c.ID)),
		slog.String("stream_id", c.StreamID),
		slog.String("message", c.Message),
		slog.Float64("clip_time", c.ClipTime),
	}

	if c.Delay != nil {
		attrs = append(attrs, slog.Float64("delay", *c.Delay))
	}

	return slog.GroupValue(attrs...)
}

// TimeWindow is a closed interval in whole seconds.
type TimeWindow struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Seconds returns the window length.
func (w TimeWindow) Seconds() int64 {
	return w.End - w.Start
}

// Section formats the window the way yt-dlp --download-sections expects it.
func (w TimeWindow) Section() string {
	return fmt.Sprintf("*%d-%d", w.Start, w.End)
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (w TimeWindow) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("start", w.Start),
		slog.Int64("end", w.End),
	)
}

// Format is one selectable encoding exposed by the media engine.
type Format struct {
	ID         string  `json:"format_id"`
	Extension  string  `json:"ext"`
	Note       string  `json:"format_note"`
	Resolution string  `json:"resolution"`
	Filesize   int64   `json:"filesize"`
	Quality    float64 `json:"quality"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (f Format) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", f.ID),
		slog.String("ext", f.Extension),
		slog.String("note", f.Note),
		slog.String("resolution", f.Resolution),
		slog.Int64("filesize", f.Filesize),
	)
}

// ClipState is the lifecycle state of one clip download.
type ClipState string

const (
	// ClipStatePending indicates that the clip has not been picked up by a worker yet.
	ClipStatePending ClipState = "pending"
	// ClipStateRunning indicates that the engine is producing the clip.
	ClipStateRunning ClipState = "running"
	// ClipStateSkipped indicates that the output file already existed.
	ClipStateSkipped ClipState = "skipped"
	// ClipStateDone indicates that the clip was produced successfully.
	ClipStateDone ClipState = "done"
	// ClipStateFailed indicates that producing the clip failed.
	ClipStateFailed ClipState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ClipState) Terminal() bool {
	return s == ClipStateSkipped || s == ClipStateDone || s == ClipStateFailed
}

// ClipResult is the terminal outcome of one worker slot.
type ClipResult struct {
	Slot     int           `json:"slot"`
	Clip     Clip          `json:"clip"`
	Window   TimeWindow    `json:"window"`
	Output   string        `json:"output"`
	State    ClipState     `json:"state"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r ClipResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("slot", r.Slot),
		slog.String("clip_id", string(r.Clip.ID)),
		slog.Any("window", r.Window),
		slog.String("output", r.Output),
		slog.String("state", string(r.State)),
		slog.String("error", r.Error),
		slog.Duration("duration", r.Duration),
	)
}

// Summary aggregates the outcomes of one batch.
type Summary struct {
	BatchID   string       `json:"batch_id"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Results   []ClipResult `json:"results"`
}

// Add counts one result into the summary.
func (s *Summary) Add(r ClipResult) {
	switch r.State {
	case ClipStateDone:
		s.Succeeded++
	case ClipStateSkipped:
		s.Skipped++
	case ClipStateFailed:
		s.Failed++
	}

	s.Results = append(s.Results, r)
}

// Total returns the number of counted results.
func (s Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("batch_id", s.BatchID),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("skipped", s.Skipped),
		slog.Int("failed", s.Failed),
	)
}
