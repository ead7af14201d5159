// Package proxymgr rotates yt-dlp invocations over a configured proxy list.
// Proxies that keep failing are put into exponential backoff.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"streamsnip/internal/config"
	"streamsnip/internal/errs"
	"streamsnip/internal/observability"
)

// State is the current state of a proxy.
type State int

const (
	// StateAvailable indicates the proxy can be handed out.
	StateAvailable State = iota
	// StateBackoff indicates the proxy failed too often and waits until its backoff ends.
	StateBackoff
)

const (
	dialTimeout = 10 * time.Second
	maxBackoff  = time.Hour
)

type entry struct {
	url          string
	state        State
	failures     int
	lastFailure  time.Time
	backoffUntil time.Time
	lastCheck    time.Time
}

// usable reports whether the entry may be handed out at now.
func (e *entry) usable(now time.Time) bool {
	return e.state == StateAvailable || now.After(e.backoffUntil)
}

// Manager hands out proxies in round-robin order.
type Manager struct {
	log     *slog.Logger
	cfg     config.Proxy
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	next    int
}

// New creates a manager for cfg.Proxies. An empty list yields a manager that never hands out a proxy.
func New(log *slog.Logger, cfg config.Proxy, metrics *observability.Metrics) *Manager {
	m := &Manager{
		log:     log.With(slog.String("package", "proxymgr")),
		cfg:     cfg,
		metrics: metrics,
		entries: make(map[string]*entry, len(cfg.Proxies)),
		order:   make([]string, 0, len(cfg.Proxies)),
	}

	for _, p := range cfg.Proxies {
		if _, dup := m.entries[p]; dup {
			continue
		}

		m.entries[p] = &entry{url: p}
		m.order = append(m.order, p)
	}

	m.metrics.SetProxiesAvailable(len(m.order))

	return m
}

// Enabled reports whether any proxy is configured.
func (m *Manager) Enabled() bool {
	return len(m.order) > 0
}

// Acquire returns the next usable proxy.
// It returns "" and no error when no proxy is configured,
// and errs.ErrNoProxiesAvailable when every configured proxy is in backoff.
func (m *Manager) Acquire() (string, error) {
	if !m.Enabled() {
		return "", nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for i := range len(m.order) {
		idx := (m.next + i) % len(m.order)

		e := m.entries[m.order[idx]]
		if !e.usable(now) {
			continue
		}

		m.next = idx + 1
		m.metrics.RecordProxyRequest(e.url)

		return e.url, nil
	}

	return "", errs.ErrNoProxiesAvailable
}

// MarkFailed counts a failure and puts the proxy into backoff after cfg.MaxFailures.
func (m *Manager) MarkFailed(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[proxyURL]
	if !ok {
		return
	}

	e.failures++
	e.lastFailure = time.Now()
	m.metrics.RecordProxyFailure(proxyURL)

	if e.failures < max(m.cfg.MaxFailures, 1) {
		return
	}

	backoff := min(m.cfg.FailureBackoff*time.Duration(1<<(e.failures-max(m.cfg.MaxFailures, 1))), maxBackoff)

	e.state = StateBackoff
	e.backoffUntil = e.lastFailure.Add(backoff)

	m.metrics.SetProxiesAvailable(m.availableLocked())

	m.log.Warn("proxy in backoff",
		slog.String("proxy", proxyURL),
		slog.Int("failures", e.failures),
		slog.Duration("backoff", backoff))
}

// MarkSuccess resets the failure count of the proxy.
func (m *Manager) MarkSuccess(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[proxyURL]
	if !ok {
		return
	}

	e.state = StateAvailable
	e.failures = 0
	e.backoffUntil = time.Time{}

	m.metrics.SetProxiesAvailable(m.availableLocked())
}

// Check dials the proxy host and records the outcome.
func (m *Manager) Check(ctx context.Context, proxyURL string) error {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	addr, err := dialAddr(u)
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		m.MarkFailed(proxyURL)

		return fmt.Errorf("dial proxy: %w", err)
	}
	defer conn.Close()

	m.mu.Lock()
	if e, ok := m.entries[proxyURL]; ok {
		e.lastCheck = time.Now()
	}
	m.mu.Unlock()

	m.MarkSuccess(proxyURL)

	return nil
}

// dialAddr returns host:port, filling in the scheme's default port.
func dialAddr(u *url.URL) (string, error) {
	if u.Port() != "" {
		return u.Host, nil
	}

	switch u.Scheme {
	case "socks5", "socks5h", "socks4", "socks4a":
		return net.JoinHostPort(u.Hostname(), "1080"), nil
	case "http":
		return net.JoinHostPort(u.Hostname(), "8080"), nil
	case "https":
		return net.JoinHostPort(u.Hostname(), "443"), nil
	default:
		return "", fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
}

// StartHealthChecker checks every proxy each cfg.HealthCheckInterval until ctx is done.
func (m *Manager) StartHealthChecker(ctx context.Context) {
	if m.cfg.HealthCheckInterval <= 0 || !m.Enabled() {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAll(ctx)
			}
		}
	}()

	m.log.Info("proxy health checker started",
		slog.Duration("interval", m.cfg.HealthCheckInterval),
		slog.Int("proxies", len(m.order)))
}

// Stats describes one proxy.
type Stats struct {
	State        State
	Failures     int
	LastFailure  time.Time
	BackoffUntil time.Time
	LastCheck    time.Time
}

// Stats returns a snapshot keyed by proxy URL.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.entries))
	for u, e := range m.entries {
		out[u] = Stats{
			State:        e.state,
			Failures:     e.failures,
			LastFailure:  e.lastFailure,
			BackoffUntil: e.backoffUntil,
			LastCheck:    e.lastCheck,
		}
	}

	return out
}

// Available returns the number of proxies that can be handed out now.
func (m *Manager) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.availableLocked()
}

func (m *Manager) availableLocked() int {
	now := time.Now()
	n := 0

	for _, e := range m.entries {
		if e.usable(now) {
			n++
		}
	}

	return n
}

func (m *Manager) checkAll(ctx context.Context) {
	m.mu.Lock()
	proxies := append([]string(nil), m.order...)
	m.mu.Unlock()

	for _, p := range proxies {
		if ctx.Err() != nil {
			return
		}

		if err := m.Check(ctx, p); err != nil {
			m.log.Debug("proxy health check failed", slog.String("proxy", p), slog.Any("error", err))
		}
	}
}
