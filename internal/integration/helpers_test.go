//go:build integration

package integration_test

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"streamsnip/internal/catalog"
	"streamsnip/internal/cli"
	"streamsnip/internal/config"
	"streamsnip/internal/depmanager"
	"streamsnip/internal/downloader"
	httprouter "streamsnip/internal/infrastructure/delivery/http"
	"streamsnip/internal/metadata"
	"streamsnip/internal/observability"
	"streamsnip/internal/proxymgr"
	"streamsnip/internal/service"
	"streamsnip/internal/storage"
	"streamsnip/pkg/ansi"
	httpserver "streamsnip/pkg/http/server"
)

//go:embed testdata/fake-ytdlp.sh
var fakeYTdlpScript []byte

type fixture struct {
	root        string
	metricsAddr string
	out         *bytes.Buffer
	cli         *cli.CLI
}

// newFixture wires the real engine, catalog, service and metrics listener
// against a fake yt-dlp on PATH and a fake clip provider.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}

	bins := t.TempDir()
	if err := os.WriteFile(filepath.Join(bins, "yt-dlp"), fakeYTdlpScript, 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}

	t.Setenv("PATH", bins+string(os.PathListSeparator)+os.Getenv("PATH"))

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := filepath.Base(r.URL.Path)
		fmt.Fprintf(w, `[
			{"id": 1, "stream_id": %q, "message": "Nice Play", "clip_time": 120, "delay": -30},
			{"id": 2, "stream_id": %q, "message": "Late Joke", "clip_time": 600, "delay": -15}
		]`, id, id)
	}))
	t.Cleanup(api.Close)

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	cfg.API.Endpoint = api.URL
	cfg.Dir.Clips = t.TempDir()
	cfg.DepManager.UseSystemBinaries = true
	cfg.Engine.ProgressFreq = time.Millisecond

	fx := &fixture{root: cfg.Dir.Clips, out: &bytes.Buffer{}}

	factory := func(ctx context.Context, cfg *config.Config) (*cli.Runtime, error) {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		metrics := observability.New()

		deps := depmanager.New(log, cfg.DepManager)
		if err := deps.Start(ctx); err != nil {
			return nil, err
		}

		engine := downloader.NewYTdlp(log, cfg, deps, proxymgr.New(log, cfg.Proxy, metrics), metrics)
		formats := catalog.New(log, engine, metrics)
		clipper := service.New(log, cfg, engine, formats, storage.New(log, cfg, metrics), metrics,
			ansi.NewTerminal(io.Discard, false), nil)

		srv, err := httpserver.New(httprouter.New(log, metrics, clipper), httpserver.Options{Addr: "127.0.0.1:0"})
		if err != nil {
			return nil, err
		}

		t.Cleanup(func() { _ = srv.Shutdown() })

		fx.metricsAddr = srv.Addr()

		return &cli.Runtime{
			Log:     log,
			Clips:   metadata.New(log, cfg.API, metrics),
			Formats: formats,
			Clipper: clipper,
		}, nil
	}

	fx.cli = cli.New(cfg, factory, cli.Streams{
		In:  strings.NewReader(""),
		Out: ansi.NewTerminal(fx.out, false),
		Err: io.Discard,
	})

	return fx
}

func (fx *fixture) run(ctx context.Context, args ...string) error {
	return fx.cli.Execute(ctx, args)
}

func (fx *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()

	resp, err := http.Get("http://" + fx.metricsAddr + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return resp.StatusCode, string(body)
}

type lastBatch struct {
	Data struct {
		Succeeded int `json:"succeeded"`
		Skipped   int `json:"skipped"`
		Failed    int `json:"failed"`
		Results   []struct {
			Output string `json:"output"`
			State  string `json:"state"`
			Error  string `json:"error"`
		} `json:"results"`
	} `json:"data"`
}

func (fx *fixture) lastBatch(t *testing.T) lastBatch {
	t.Helper()

	status, body := fx.get(t, "/v1/batches/last")
	if status != http.StatusOK {
		t.Fatalf("last batch status = %d: %s", status, body)
	}

	var lb lastBatch
	if err := json.Unmarshal([]byte(body), &lb); err != nil {
		t.Fatalf("decode last batch: %v", err)
	}

	return lb
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return strings.Split(strings.TrimSpace(string(data)), "\n")
}
