package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/internal/prompt"
	"streamsnip/internal/service"
	"streamsnip/pkg/urls"
)

// interactive asks for URLs until q or end of input. first, when set, is used
// as the answer to the first URL question.
func (c *CLI) interactive(ctx context.Context, first string) error {
	p := prompt.New(c.streams.In, c.streams.Out.Out, c.painter)
	failed := false

	for ctx.Err() == nil {
		raw := first
		first = ""

		if raw == "" {
			var (
				ok  bool
				err error
			)

			raw, ok, err = p.URL()
			if errors.Is(err, io.EOF) || (err == nil && !ok) {
				break
			}

			if err != nil {
				return err
			}
		}

		batch, err := c.askBatch(ctx, p, raw)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			p.Println(c.painter.Error("%v", err))

			continue
		}

		if err := c.run(ctx, batch); errors.Is(err, ErrBatchFailed) {
			failed = true
		} else if err != nil {
			p.Println(c.painter.Error("%v", err))
		}
	}

	if failed {
		return ErrBatchFailed
	}

	return nil
}

// askBatch walks the prompts for one URL.
func (c *CLI) askBatch(ctx context.Context, p *prompt.Prompter, raw string) (service.Batch, error) {
	source, clips, err := c.fetchClips(ctx, raw)
	if err != nil {
		return service.Batch{}, err
	}

	videoID, _ := urls.VideoID(source)
	p.ListClips(videoID, clips)

	nums, err := p.Select(len(clips))
	if err != nil {
		return service.Batch{}, err
	}

	pad, err := p.Padding()
	if err != nil {
		return service.Batch{}, err
	}

	batch := service.Batch{Source: source, Clips: pick(clips, nums), Padding: pad}

	custom, err := p.Confirm("Use a custom format?")
	if err != nil {
		return service.Batch{}, err
	}

	if custom {
		formats, err := c.rt.Formats.Get(ctx, source)
		if err != nil {
			p.Println(c.painter.Warn("Could not list formats: %v", err))
		} else if batch.FormatID, err = p.Format(formats); err != nil {
			return service.Batch{}, err
		}
	}

	if batch.FormatID == "" {
		if batch.Container, err = p.Container(c.cfg.Engine.Container); err != nil {
			return service.Batch{}, err
		}
	}

	if batch.AlignKeyframes, err = p.Confirm("Align cuts to keyframes?"); err != nil {
		return service.Batch{}, err
	}

	return batch, nil
}

// runOnce runs a single batch from flags.
func (c *CLI) runOnce(ctx context.Context, raw string) error {
	source, clips, err := c.fetchClips(ctx, raw)
	if err != nil {
		return err
	}

	sel := prompt.ParseSelection(c.flags.selection, len(clips))

	for _, part := range sel.Invalid {
		c.println(c.painter.Error("Invalid selection: %s", part))
	}

	for _, num := range sel.OutOfRange {
		c.println(c.painter.Warn("Clip number %d is out of range.", num))
	}

	if len(sel.Numbers) == 0 {
		return errs.ErrNoSelection
	}

	return c.run(ctx, service.Batch{
		Source:         source,
		Clips:          pick(clips, sel.Numbers),
		Padding:        c.flags.pad,
		FormatID:       c.flags.formatID,
		Container:      c.flags.container,
		AlignKeyframes: c.flags.keyframes,
	})
}

// fetchClips resolves raw to a watch URL and fetches its clips.
func (c *CLI) fetchClips(ctx context.Context, raw string) (string, []entity.Clip, error) {
	videoID, err := urls.VideoID(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", errs.ErrInvalidURL, raw)
	}

	clips, err := c.rt.Clips.Fetch(ctx, videoID)
	if err != nil {
		c.rt.Log.DebugContext(ctx, "fetch clips", slog.String("video_id", videoID), slog.Any("error", err))

		return "", nil, fmt.Errorf("no clips found: %w", err)
	}

	return urls.WatchURL(videoID), clips, nil
}

// run executes batch and prints the per-clip outcome and the summary.
func (c *CLI) run(ctx context.Context, batch service.Batch) error {
	sum, err := c.rt.Clipper.Run(ctx, batch)
	if err != nil {
		return err
	}

	for _, res := range sum.Results {
		switch res.State {
		case entity.ClipStateSkipped:
			c.println(c.painter.Skip("%s exists.", filepath.Base(res.Output)))
		case entity.ClipStateFailed:
			c.println(c.painter.Error("Download failed: %s [ID:%s]: %s", res.Clip.Message, res.Clip.ID, res.Error))
		}
	}

	c.println(c.painter.Done("Clips saved under %s", filepath.Join(c.cfg.Dir.Clips, batch.Clips[0].StreamID)))
	c.println(c.painter.Info("%d succeeded, %d skipped, %d failed", sum.Succeeded, sum.Skipped, sum.Failed))

	if sum.Failed > 0 {
		return ErrBatchFailed
	}

	return nil
}

func (c *CLI) println(line string) {
	fmt.Fprintln(c.streams.Out.Out, line)
}

// pick returns the clips at the given 1-based numbers.
func pick(clips []entity.Clip, nums []int) []entity.Clip {
	out := make([]entity.Clip, 0, len(nums))
	for _, n := range nums {
		out = append(out, clips[n-1])
	}

	return out
}
