package entity_test

import (
	"encoding/json"
	"testing"

	"streamsnip/internal/consts"
	"streamsnip/internal/entity"
	"streamsnip/pkg/ptr"
)

func TestClipWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		clip  entity.Clip
		pad   float64
		want  entity.TimeWindow
		wantN int64
	}{
		{
			name:  "nil delay defaults to sixty seconds",
			clip:  entity.Clip{ClipTime: 300},
			want:  entity.TimeWindow{Start: 300, End: 360},
			wantN: 60,
		},
		{
			name:  "zero delay defaults to sixty seconds",
			clip:  entity.Clip{ClipTime: 300, Delay: ptr.Of(0.0)},
			want:  entity.TimeWindow{Start: 300, End: 360},
			wantN: 60,
		},
		{
			name:  "positive delay falls back to sixty seconds",
			clip:  entity.Clip{ClipTime: 120, Delay: ptr.Of(15.0)},
			pad:   5,
			want:  entity.TimeWindow{Start: 115, End: 185},
			wantN: 70,
		},
		{
			name:  "padding widens both ends",
			clip:  entity.Clip{ClipTime: 120, Delay: ptr.Of(-30.0)},
			pad:   5,
			want:  entity.TimeWindow{Start: 115, End: 160},
			wantN: 40,
		},
		{
			name:  "fractional clip time is floored",
			clip:  entity.Clip{ClipTime: 99.75, Delay: ptr.Of(-10.0)},
			want:  entity.TimeWindow{Start: 99, End: 109},
			wantN: 10,
		},
		{
			name:  "fractional padding",
			clip:  entity.Clip{ClipTime: 120, Delay: ptr.Of(-30.0)},
			pad:   2.5,
			want:  entity.TimeWindow{Start: 117, End: 152},
			wantN: 35,
		},
		{
			name:  "start is clamped at zero",
			clip:  entity.Clip{ClipTime: 3, Delay: ptr.Of(-20.0)},
			pad:   5,
			want:  entity.TimeWindow{Start: 0, End: 28},
			wantN: 28,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := tc.clip.Window(tc.pad, consts.DefaultDelay)
			if got != tc.want {
				t.Errorf("Window() = %+v, want %+v", got, tc.want)
			}

			if got.Seconds() != tc.wantN {
				t.Errorf("Seconds() = %d, want %d", got.Seconds(), tc.wantN)
			}
		})
	}
}

func TestClipDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message string
		want    string
	}{
		{message: "Nice Play", want: "Nice_Play"},
		{message: "two  spaces", want: "two__spaces"},
		{message: "tab\there", want: "tab_here"},
		{message: "plain", want: "plain"},
	}

	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			t.Parallel()

			clip := entity.Clip{Message: tc.message}
			if got := clip.Description(); got != tc.want {
				t.Errorf("Description() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClipUnmarshal(t *testing.T) {
	t.Parallel()

	raw := `[
		{"id": 1, "stream_id": "abc", "message": "Nice Play", "clip_time": 120, "delay": -30},
		{"id": "x7", "stream_id": "abc", "message": "null delay", "clip_time": 10.5, "delay": null}
	]`

	var clips []entity.Clip
	if err := json.Unmarshal([]byte(raw), &clips); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(clips) != 2 {
		t.Fatalf("got %d clips, want 2", len(clips))
	}

	if clips[0].ID != "1" {
		t.Errorf("numeric id = %q, want %q", clips[0].ID, "1")
	}

	if clips[0].Delay == nil || *clips[0].Delay != -30 {
		t.Errorf("delay = %v, want -30", clips[0].Delay)
	}

	if clips[1].ID != "x7" {
		t.Errorf("string id = %q, want %q", clips[1].ID, "x7")
	}

	if clips[1].Delay != nil {
		t.Errorf("null delay decoded as %v", *clips[1].Delay)
	}

	if got := clips[1].Duration(consts.DefaultDelay); got != 60 {
		t.Errorf("Duration() = %v, want 60", got)
	}
}

func TestSummaryAdd(t *testing.T) {
	t.Parallel()

	var sum entity.Summary

	for _, state := range []entity.ClipState{
		entity.ClipStateDone,
		entity.ClipStateDone,
		entity.ClipStateSkipped,
		entity.ClipStateFailed,
	} {
		sum.Add(entity.ClipResult{State: state})
	}

	if sum.Succeeded != 2 || sum.Skipped != 1 || sum.Failed != 1 {
		t.Errorf("got %+v", sum)
	}

	if sum.Total() != 4 || len(sum.Results) != 4 {
		t.Errorf("Total() = %d, results = %d, want 4", sum.Total(), len(sum.Results))
	}
}

func TestTimeWindowSection(t *testing.T) {
	t.Parallel()

	w := entity.TimeWindow{Start: 115, End: 160}
	if got := w.Section(); got != "*115-160" {
		t.Errorf("Section() = %q, want %q", got, "*115-160")
	}
}
