package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"streamsnip/internal/consts"
	"streamsnip/internal/downloader"
	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/internal/progress"
)

// process drives one clip from pending to a terminal state. It never panics and never returns an error:
// every outcome ends up in the returned result and in the slot's table entry.
func (svc *clipper) process(
	ctx context.Context,
	log *slog.Logger,
	batch Batch,
	table *progress.Table,
	t task,
) (res entity.ClipResult) {
	started := time.Now()
	stopTimer := svc.metrics.ClipTimer()

	log = log.With(slog.Int("slot", t.slot), slog.Any("clip", t.clip))

	res = entity.ClipResult{
		Slot:   t.slot,
		Clip:   t.clip,
		Window: t.clip.Window(batch.Padding, consts.DefaultDelay),
		State:  entity.ClipStatePending,
	}

	svc.metrics.RecordClipCreated()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "clip worker panicked", slog.Any("panic", r))
			res = svc.fail(table, res, fmt.Errorf("%w: %v", errs.ErrWorkerPanic, r))
		}

		res.Duration = time.Since(started)

		if res.State == entity.ClipStateDone {
			stopTimer()
		}

		log.DebugContext(ctx, "clip finished", slog.Any("result", res))
	}()

	ext := batch.Container

	if batch.FormatID != "" {
		format, err := svc.catalog.Lookup(ctx, batch.Source, batch.FormatID)
		if err != nil {
			return svc.fail(table, res, err)
		}

		ext = format.Extension
	}

	res.Output = svc.storer.Path(t.clip, res.Window, ext)

	if svc.storer.Exists(res.Output) {
		res.State = entity.ClipStateSkipped

		table.Finish(t.slot, consts.StatusExists)
		svc.metrics.RecordClipSkipped()

		return res
	}

	if err := svc.storer.Prepare(ctx, res.Output); err != nil {
		return svc.fail(table, res, err)
	}

	res.State = entity.ClipStateRunning

	clipCtx := ctx

	if svc.cfg.Job.Timeout > 0 {
		var cancel context.CancelFunc

		clipCtx, cancel = context.WithTimeout(ctx, svc.cfg.Job.Timeout)
		defer cancel()
	}

	req := downloader.Request{
		Source:         batch.Source,
		Window:         res.Window,
		Output:         res.Output,
		FormatID:       batch.FormatID,
		AlignKeyframes: batch.AlignKeyframes,
	}

	if batch.FormatID == "" {
		req.Container = batch.Container
	}

	err := svc.engine.Download(clipCtx, req, func(p downloader.Progress) {
		table.Set(t.slot, p.String())
	})
	if err != nil {
		if n := svc.storer.CleanupPartial(context.WithoutCancel(ctx), res.Output); n > 0 {
			log.DebugContext(ctx, "partial files removed", slog.Int("files", n))
		}

		if !errors.Is(err, errs.ErrEngineFailure) {
			err = fmt.Errorf("%w: %w", errs.ErrEngineFailure, err)
		}

		return svc.fail(table, res, err)
	}

	res.State = entity.ClipStateDone

	table.Finish(t.slot, consts.StatusDone)
	svc.metrics.RecordClipCompleted()

	return res
}

func (svc *clipper) fail(table *progress.Table, res entity.ClipResult, err error) entity.ClipResult {
	res.State = entity.ClipStateFailed
	res.Error = err.Error()

	table.Finish(res.Slot, consts.StatusFailedPrefix+err.Error())
	svc.metrics.RecordClipFailed()

	return res
}
