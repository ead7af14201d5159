package downloader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"streamsnip/internal/config"
	"streamsnip/internal/consts"
	"streamsnip/internal/depmanager"
	"streamsnip/internal/entity"
	"streamsnip/internal/errs"
	"streamsnip/internal/observability"
	"streamsnip/internal/proxymgr"
	"streamsnip/pkg/maths"

	"github.com/alessio/shellescape"
)

const (
	maxJSONSize = 32 * 1024 * 1024 // probe output of long streams is large
	bufSize     = 64 * 1024
	waitDelay   = 3 * time.Second
)

// Binaries resolves executables installed or found by the dependency manager.
type Binaries interface {
	Path(name depmanager.BinaryName) (string, error)
}

// YTdlp is the yt-dlp subprocess engine.
type YTdlp struct {
	log      *slog.Logger
	cfg      *config.Config
	bins     Binaries
	proxyMgr *proxymgr.Manager
	metrics  *observability.Metrics
}

var _ Engine = (*YTdlp)(nil)

// NewYTdlp creates a new yt-dlp engine. proxyMgr may be nil.
func NewYTdlp(
	log *slog.Logger,
	cfg *config.Config,
	bins Binaries,
	proxyMgr *proxymgr.Manager,
	metrics *observability.Metrics,
) *YTdlp {
	return &YTdlp{
		log:      log.With(slog.String("package", "downloader"), slog.String("engine", consts.EngineYTdlp)),
		cfg:      cfg,
		bins:     bins,
		proxyMgr: proxyMgr,
		metrics:  metrics,
	}
}

// probeResult is the subset of yt-dlp -J output the catalog needs.
type probeResult struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Formats []probeFormat `json:"formats"`
}

type probeFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note"`
	Resolution     string  `json:"resolution"`
	Filesize       any     `json:"filesize"`
	FilesizeApprox any     `json:"filesize_approx"`
	Quality        float64 `json:"quality"`
}

// Probe runs yt-dlp -J and returns the formats in yt-dlp's order (worst first).
func (d *YTdlp) Probe(ctx context.Context, source string) ([]entity.Format, error) {
	log := d.log.With(slog.String("func", "Probe"), slog.String("source", source))

	args := d.commonArgs()
	args = append(args, "-J", "--skip-download", source)

	stdout, proxy, err := d.run(ctx, log, "probe", args, nil)
	if err != nil {
		return nil, err
	}

	var res probeResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		d.metrics.RecordEngineError(consts.EngineYTdlp, "decode")

		return nil, fmt.Errorf("%w: decode probe output: %w", errs.ErrEngineFailure, err)
	}

	d.markProxy(proxy, nil)

	formats := make([]entity.Format, 0, len(res.Formats))
	for _, f := range res.Formats {
		size := maths.Int64(f.Filesize)
		if size == 0 {
			size = maths.Int64(f.FilesizeApprox)
		}

		formats = append(formats, entity.Format{
			ID:         f.FormatID,
			Extension:  f.Ext,
			Note:       f.FormatNote,
			Resolution: f.Resolution,
			Filesize:   size,
			Quality:    f.Quality,
		})
	}

	log.DebugContext(ctx, "probe done", slog.String("title", res.Title), slog.Int("formats", len(formats)))

	return formats, nil
}

// Download cuts req.Window out of req.Source into req.Output.
func (d *YTdlp) Download(ctx context.Context, req Request, onProgress ProgressFunc) error {
	log := d.log.With(slog.String("func", "Download"), slog.Any("request", req))

	args := d.commonArgs()
	args = append(args, d.downloadArgs(req)...)
	args = append(args, req.Source)

	_, proxy, err := d.run(ctx, log, "download", args, d.progressReader(ctx, log, onProgress))
	if err != nil {
		return err
	}

	d.markProxy(proxy, nil)

	log.InfoContext(ctx, "clip downloaded")

	return nil
}

func (d *YTdlp) commonArgs() []string {
	args := []string{"--no-playlist", "--no-warnings"}

	if d.cfg.Dir.Cache != "" {
		args = append(args, "--cache-dir", d.cfg.Dir.Cache)
	} else {
		args = append(args, "--no-cache-dir")
	}

	if d.cfg.Dir.CookieFile != "" {
		args = append(args, "--cookies", d.cfg.Dir.CookieFile)
	}

	if ffmpeg, err := d.bins.Path(depmanager.BinaryFFmpeg); err == nil {
		args = append(args, "--ffmpeg-location", ffmpeg)
	}

	if deno, err := d.bins.Path(depmanager.BinaryDeno); err == nil {
		args = append(args, "--js-runtimes", "deno:"+deno)
	}

	return args
}

func (d *YTdlp) downloadArgs(req Request) []string {
	args := []string{
		"--newline",
		"--no-overwrites",
		"--progress-template", progressTemplate,
		"--download-sections", req.Window.Section(),
		"-o", req.Output,
	}

	if d.cfg.Engine.MatchFilter != "" {
		args = append(args, "--match-filter", d.cfg.Engine.MatchFilter)
	}

	if req.AlignKeyframes {
		args = append(args, "--force-keyframes-at-cuts")
	}

	switch {
	case req.FormatID != "":
		args = append(args, "-f", req.FormatID)
	case req.Container != "":
		args = append(args, "--recode-video", req.Container)
	}

	return args
}

// progressReader returns a stdout consumer that forwards rate limited progress events.
// Phase changes are always forwarded.
func (d *YTdlp) progressReader(ctx context.Context, log *slog.Logger, onProgress ProgressFunc) func(io.Reader) {
	freq := d.cfg.Engine.ProgressFreq
	if freq <= 0 {
		freq = defaultProgressFreq
	}

	return func(r io.Reader) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, bufSize), bufSize)
		scanner.Split(splitLinesAny)

		var (
			last      time.Time
			lastPhase Phase
		)

		for scanner.Scan() {
			p, ok := parseProgressLine(scanner.Text())
			if !ok || onProgress == nil {
				continue
			}

			if p.Phase == lastPhase && time.Since(last) < freq {
				continue
			}

			last, lastPhase = time.Now(), p.Phase

			log.DebugContext(ctx, "progress", slog.Any("progress", p))
			onProgress(p)
		}

		// drain so yt-dlp never blocks on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}

// run executes yt-dlp. stdout is handed to consume when set, otherwise collected and returned.
func (d *YTdlp) run(
	ctx context.Context,
	log *slog.Logger,
	op string,
	args []string,
	consume func(io.Reader),
) (string, string, error) {
	bin, err := d.bins.Path(depmanager.BinaryYTdlp)
	if err != nil {
		d.metrics.RecordEngineError(consts.EngineYTdlp, "binary")

		return "", "", fmt.Errorf("%w: %w", errs.ErrEngineFailure, err)
	}

	proxy, err := d.acquireProxy()
	if err != nil {
		log.WarnContext(ctx, "running without proxy", slog.Any("error", err))
	}

	if proxy != "" {
		args = append([]string{"--proxy", proxy}, args...)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	// children of a killed yt-dlp (ffmpeg) may hold the pipes open
	cmd.WaitDelay = waitDelay

	log.DebugContext(ctx, "executing yt-dlp", slog.String("command", shellescape.QuoteCommand(cmd.Args)))

	var (
		stdoutBuf strings.Builder
		stderrBuf strings.Builder
		wg        sync.WaitGroup
	)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		_ = pw.Close()

		d.metrics.RecordEngineRequest(consts.EngineYTdlp, op, "error")
		d.metrics.RecordEngineError(consts.EngineYTdlp, "start")

		return "", proxy, fmt.Errorf("%w: start yt-dlp: %w", errs.ErrEngineFailure, err)
	}

	wg.Go(func() {
		if consume != nil {
			consume(pr)

			return
		}

		_, _ = io.Copy(&stdoutBuf, io.LimitReader(pr, maxJSONSize))
		_, _ = io.Copy(io.Discard, pr)
	})

	err = cmd.Wait()
	_ = pw.Close()

	wg.Wait()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}

		d.metrics.RecordEngineRequest(consts.EngineYTdlp, op, "error")
		d.metrics.RecordEngineError(consts.EngineYTdlp, classifyError(err))
		d.markProxy(proxy, err)

		log.ErrorContext(ctx, "yt-dlp failed", slog.Any("error", err), slog.String("stderr", stderrBuf.String()))

		return "", proxy, fmt.Errorf("%w: %s: %w", errs.ErrEngineFailure, lastLine(stderrBuf.String()), err)
	}

	d.metrics.RecordEngineRequest(consts.EngineYTdlp, op, "ok")

	return stdoutBuf.String(), proxy, nil
}

func (d *YTdlp) acquireProxy() (string, error) {
	if d.proxyMgr == nil {
		return "", nil
	}

	return d.proxyMgr.Acquire()
}

// markProxy feeds the outcome back to the proxy manager. Cancellation is not the proxy's fault.
func (d *YTdlp) markProxy(proxy string, err error) {
	if d.proxyMgr == nil || proxy == "" {
		return
	}

	switch classifyError(err) {
	case "canceled", "timeout":
		return
	}

	if err != nil {
		d.proxyMgr.MarkFailed(proxy)

		return
	}

	d.proxyMgr.MarkSuccess(proxy)
}

// lastLine returns the last non-empty line of yt-dlp stderr, usually "ERROR: ...".
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}

	return "yt-dlp exited"
}
