package depmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const sha256HexLen = 64

var errNoSumsURLs = errors.New("no checksum urls configured")

// parseSums reads "hash  filename" lines; anything else is ignored.
func parseSums(content string) map[string]string {
	sums := make(map[string]string)

	for line := range strings.Lines(content) {
		fields := strings.Fields(line)
		if len(fields) != 2 || len(fields[0]) != sha256HexLen {
			continue
		}

		sums[strings.TrimPrefix(fields[1], "*")] = strings.ToLower(fields[0])
	}

	return sums
}

// sumsURLs flattens the configured checksum URLs; each setting may hold a comma list.
func (m *Manager) sumsURLs() []string {
	var urls []string

	for _, raw := range []string{m.cfg.YTdlpSHA256SumsURL, m.cfg.FFmpegSHA256SumsURL, m.cfg.DenoSHA256SumsURL} {
		for u := range strings.SplitSeq(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
	}

	return urls
}

// refreshSums fetches every checksum file into the remote set.
func (m *Manager) refreshSums(ctx context.Context) error {
	urls := m.sumsURLs()
	if len(urls) == 0 {
		return errNoSumsURLs
	}

	fetched := make(map[string]string)

	for _, u := range urls {
		body, err := m.get(ctx, u)
		if err != nil {
			return err
		}

		data, err := io.ReadAll(body)
		body.Close()

		if err != nil {
			return fmt.Errorf("read %s: %w", u, err)
		}

		maps.Copy(fetched, parseSums(string(data)))
	}

	m.mu.Lock()
	maps.Copy(m.remote, fetched)
	m.mu.Unlock()

	m.log.DebugContext(ctx, "checksums fetched", slog.Int("count", len(fetched)))

	return nil
}

func (m *Manager) sumsPath() string {
	return filepath.Join(m.cfg.BinsDir, sumsFilename)
}

func (m *Manager) loadSums() error {
	data, err := os.ReadFile(m.sumsPath())
	if err != nil {
		return fmt.Errorf("read checksums: %w", err)
	}

	sums := make(map[string]string)
	if err := json.Unmarshal(data, &sums); err != nil {
		return fmt.Errorf("decode checksums: %w", err)
	}

	m.mu.Lock()
	m.local = sums
	m.mu.Unlock()

	return nil
}

// saveSums persists the remote set as the installed one.
func (m *Manager) saveSums() error {
	m.mu.RLock()
	sums := maps.Clone(m.remote)
	m.mu.RUnlock()

	data, err := json.MarshalIndent(sums, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checksums: %w", err)
	}

	if err := os.WriteFile(m.sumsPath(), data, permFile); err != nil {
		return fmt.Errorf("write checksums: %w", err)
	}

	m.mu.Lock()
	m.local = sums
	m.mu.Unlock()

	return nil
}

// outdated returns the artifacts whose announced checksum differs from the installed one.
func (m *Manager) outdated(arts []artifact) []artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []artifact

	for _, a := range arts {
		remote, ok := m.remote[a.asset()]
		if ok && remote != m.local[a.asset()] {
			stale = append(stale, a)
		}
	}

	return stale
}

// checkUpdates reinstalls outdated artifacts. Concurrent calls collapse into one.
func (m *Manager) checkUpdates(ctx context.Context) {
	if !m.updating.CompareAndSwap(false, true) {
		return
	}
	defer m.updating.Store(false)

	arts, err := m.artifacts()
	if err != nil {
		m.log.WarnContext(ctx, "update check", slog.Any("error", err))

		return
	}

	if err := m.refreshSums(ctx); err != nil {
		m.log.WarnContext(ctx, "update check: fetch checksums", slog.Any("error", err))

		return
	}

	stale := m.outdated(arts)
	if len(stale) == 0 {
		m.log.DebugContext(ctx, "update check: up to date")

		return
	}

	for _, a := range stale {
		if err := m.install(ctx, a); err != nil {
			m.log.ErrorContext(ctx, "update check: install",
				slog.String("binary", string(a.binary)), slog.Any("error", err))

			continue
		}

		m.log.InfoContext(ctx, "update check: binary updated", slog.String("binary", string(a.binary)))
	}

	if err := m.saveSums(); err != nil {
		m.log.WarnContext(ctx, "update check: save checksums", slog.Any("error", err))
	}
}

// StartUpdateChecker runs checkUpdates every UpdateInterval until ctx is done.
// A non-positive interval disables it.
func (m *Manager) StartUpdateChecker(ctx context.Context) {
	if m.cfg.UpdateInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.UpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkUpdates(ctx)
			}
		}
	}()
}
