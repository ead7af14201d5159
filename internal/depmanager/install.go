package depmanager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// Install downloads whatever is missing from the bins directory and records
// the upstream checksums for later update checks.
func (m *Manager) Install(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.BinsDir, permExecutable); err != nil {
		return fmt.Errorf("create bins dir: %w", err)
	}

	if err := m.loadSums(); err != nil {
		m.log.DebugContext(ctx, "no saved checksums", slog.Any("error", err))
	}

	arts, err := m.artifacts()
	if err != nil {
		return err
	}

	for _, a := range arts {
		if m.installed(a) {
			m.register(a)
			m.log.DebugContext(ctx, "binary present", slog.String("binary", string(a.binary)))

			continue
		}

		if err := m.install(ctx, a); err != nil {
			return fmt.Errorf("install %s: %w", a.binary, err)
		}
	}

	m.log.InfoContext(ctx, "binaries ready", slog.Any("binaries", m.Paths()))

	if err := m.refreshSums(ctx); err != nil {
		m.log.WarnContext(ctx, "fetch checksums", slog.Any("error", err))

		return nil
	}

	if err := m.saveSums(); err != nil {
		m.log.WarnContext(ctx, "save checksums", slog.Any("error", err))
	}

	return nil
}

// install downloads a into a temp file inside the bins dir, then extracts
// or renames it into place.
func (m *Manager) install(ctx context.Context, a artifact) error {
	log := m.log.With(slog.String("binary", string(a.binary)), slog.String("url", a.url))
	log.InfoContext(ctx, "downloading binary")

	tmp, err := os.CreateTemp(m.cfg.BinsDir, "download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	body, err := m.get(ctx, a.url)
	if err != nil {
		return err
	}

	_, err = io.Copy(tmp, body)
	body.Close()

	if err != nil {
		return fmt.Errorf("write download: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close download: %w", err)
	}

	if kind := archiveKindOf(a.url); kind != archiveNone {
		err = extract(tmpPath, kind, m.cfg.BinsDir, a.members)
	} else {
		err = os.Rename(tmpPath, m.binPath(a.binary))
	}

	if err != nil {
		return err
	}

	for _, name := range a.provides() {
		if err := os.Chmod(m.binPath(name), permExecutable); err != nil {
			return fmt.Errorf("chmod %s: %w", name, err)
		}
	}

	m.register(a)
	log.InfoContext(ctx, "binary installed")

	return nil
}

// get issues a GET and returns the body of a 200 response.
func (m *Manager) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	return resp.Body, nil
}
