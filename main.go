// streamsnip cuts community-marked clips out of YouTube streams.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"streamsnip/internal/catalog"
	"streamsnip/internal/cli"
	"streamsnip/internal/config"
	"streamsnip/internal/depmanager"
	"streamsnip/internal/downloader"
	httprouter "streamsnip/internal/infrastructure/delivery/http"
	"streamsnip/internal/metadata"
	"streamsnip/internal/observability"
	"streamsnip/internal/progress"
	"streamsnip/internal/proxymgr"
	"streamsnip/internal/service"
	"streamsnip/internal/storage"
	"streamsnip/pkg/ansi"
	httpserver "streamsnip/pkg/http/server"
	"streamsnip/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	streams := cli.Streams{In: os.Stdin, Out: ansi.Stdout(), Err: os.Stderr}

	err = cli.New(cfg, buildRuntime(streams.Out), streams).Execute(ctx, os.Args[1:])

	stop()

	if err != nil {
		os.Exit(1)
	}
}

// buildRuntime wires the application once the command line has been applied to cfg.
func buildRuntime(term ansi.Terminal) cli.Factory {
	return func(ctx context.Context, cfg *config.Config) (*cli.Runtime, error) {
		logOut, err := logger.OpenFile(cfg.App.LogFile)
		if err != nil {
			return nil, err
		}

		// stderr and the progress block share the terminal: route logs through the display during batches
		var (
			sink    *progress.Sink
			logDest io.Writer = logOut
		)

		if cfg.App.LogFile == "" && term.TTY && ansi.IsTerminal(os.Stderr) {
			sink = progress.NewSink(logOut)
			logDest = sink
		}

		log, err := logger.New(&logger.Options{
			AddSource: true,
			Level:     cfg.App.LogLevel,
			Output:    logDest,
		})
		if err != nil {
			log.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
		}

		metrics := observability.New()

		log.InfoContext(ctx, "checking yt-dlp, ffmpeg and deno. it may take some time...")

		depMgr := depmanager.New(log, cfg.DepManager)
		if err := depMgr.Start(ctx); err != nil {
			_ = logOut.Close()

			return nil, fmt.Errorf("prepare binaries: %w", err)
		}

		proxyMgr := proxymgr.New(log, cfg.Proxy, metrics)
		if proxyMgr.Enabled() {
			proxyMgr.StartHealthChecker(ctx)

			log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", len(cfg.Proxy.Proxies)))
		}

		engine := downloader.NewYTdlp(log, cfg, depMgr, proxyMgr, metrics)
		formats := catalog.New(log, engine, metrics)
		clipper := service.New(log, cfg, engine, formats, storage.New(log, cfg, metrics), metrics, term, sink)

		shutdown := func() { _ = logOut.Close() }

		if cfg.Metrics.Addr != "" {
			srv, err := httpserver.New(httprouter.New(log, metrics, clipper), httpserver.Options{
				Addr:            cfg.Metrics.Addr,
				ShutdownTimeout: cfg.Metrics.ShutdownTimeout,
			})
			if err != nil {
				_ = logOut.Close()

				return nil, fmt.Errorf("metrics listener: %w", err)
			}

			log.InfoContext(ctx, "metrics listener started", slog.String("addr", srv.Addr()))

			go func() {
				if err, ok := <-srv.Notify(); ok {
					log.ErrorContext(ctx, "metrics listener stopped", slog.Any("error", err))
				}
			}()

			shutdown = func() {
				if err := srv.Shutdown(); err != nil {
					log.Error("metrics listener shutdown", slog.Any("error", err))
				}

				_ = logOut.Close()
			}
		}

		return &cli.Runtime{
			Log:      log,
			Clips:    metadata.New(log, cfg.API, metrics),
			Formats:  formats,
			Clipper:  clipper,
			Shutdown: shutdown,
		}, nil
	}
}
