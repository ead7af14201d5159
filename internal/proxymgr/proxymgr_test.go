package proxymgr_test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"testing/synctest"
	"time"

	"streamsnip/internal/config"
	"streamsnip/internal/errs"
	"streamsnip/internal/observability"
	"streamsnip/internal/proxymgr"
)

const testProxyURL = "socks5h://localhost:1080"

func newManager(cfg config.Proxy) *proxymgr.Manager {
	return proxymgr.New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, observability.New())
}

func TestAcquire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		proxies []string
		want    []string
	}{
		{
			name:    "no proxies returns empty",
			proxies: nil,
			want:    []string{"", ""},
		},
		{
			name:    "single proxy repeats",
			proxies: []string{testProxyURL},
			want:    []string{testProxyURL, testProxyURL},
		},
		{
			name:    "rotates in configured order",
			proxies: []string{"socks5h://a:1080", "socks5h://b:1080"},
			want:    []string{"socks5h://a:1080", "socks5h://b:1080", "socks5h://a:1080"},
		},
		{
			name:    "duplicates are collapsed",
			proxies: []string{testProxyURL, testProxyURL},
			want:    []string{testProxyURL, testProxyURL},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mgr := newManager(config.Proxy{Proxies: tc.proxies})

			for i, want := range tc.want {
				got, err := mgr.Acquire()
				if err != nil {
					t.Fatalf("Acquire() #%d: %v", i, err)
				}

				if got != want {
					t.Errorf("Acquire() #%d = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestAcquireSkipsProxiesInBackoff(t *testing.T) {
	t.Parallel()

	mgr := newManager(config.Proxy{
		Proxies:        []string{"socks5h://a:1080", "socks5h://b:1080"},
		MaxFailures:    1,
		FailureBackoff: time.Minute,
	})

	mgr.MarkFailed("socks5h://a:1080")

	for range 3 {
		got, err := mgr.Acquire()
		if err != nil {
			t.Fatalf("Acquire(): %v", err)
		}

		if got != "socks5h://b:1080" {
			t.Errorf("Acquire() = %q, want the healthy proxy", got)
		}
	}

	mgr.MarkFailed("socks5h://b:1080")

	if _, err := mgr.Acquire(); !errors.Is(err, errs.ErrNoProxiesAvailable) {
		t.Errorf("Acquire() error = %v, want %v", err, errs.ErrNoProxiesAvailable)
	}
}

func TestMarkFailed(t *testing.T) {
	t.Parallel()

	mgr := newManager(config.Proxy{
		Proxies:        []string{testProxyURL},
		MaxFailures:    3,
		FailureBackoff: time.Minute,
	})

	mgr.MarkFailed(testProxyURL)
	mgr.MarkFailed(testProxyURL)

	if got := mgr.Available(); got != 1 {
		t.Errorf("Available() = %d before reaching max failures, want 1", got)
	}

	mgr.MarkFailed(testProxyURL)

	stats := mgr.Stats()[testProxyURL]
	if stats.State != proxymgr.StateBackoff {
		t.Errorf("State = %v, want StateBackoff", stats.State)
	}

	if stats.Failures != 3 {
		t.Errorf("Failures = %d, want 3", stats.Failures)
	}

	if got := mgr.Available(); got != 0 {
		t.Errorf("Available() = %d during backoff, want 0", got)
	}

	// unknown proxies are ignored
	mgr.MarkFailed("socks5h://nonexistent:1080")
}

func TestMarkSuccess(t *testing.T) {
	t.Parallel()

	mgr := newManager(config.Proxy{
		Proxies:        []string{testProxyURL},
		MaxFailures:    1,
		FailureBackoff: time.Minute,
	})

	mgr.MarkFailed(testProxyURL)
	mgr.MarkSuccess(testProxyURL)

	stats := mgr.Stats()[testProxyURL]
	if stats.State != proxymgr.StateAvailable || stats.Failures != 0 {
		t.Errorf("stats after success = %+v", stats)
	}
}

func TestBackoffExpiry(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		mgr := newManager(config.Proxy{
			Proxies:        []string{testProxyURL},
			MaxFailures:    1,
			FailureBackoff: time.Minute,
		})

		mgr.MarkFailed(testProxyURL)

		if got := mgr.Available(); got != 0 {
			t.Errorf("Available() = %d, want 0", got)
		}

		time.Sleep(time.Minute + time.Second)

		if got := mgr.Available(); got != 1 {
			t.Errorf("Available() after backoff = %d, want 1", got)
		}
	})
}

func TestBackoffGrowsExponentially(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		mgr := newManager(config.Proxy{
			Proxies:        []string{testProxyURL},
			MaxFailures:    1,
			FailureBackoff: time.Minute,
		})

		mgr.MarkFailed(testProxyURL)
		mgr.MarkFailed(testProxyURL)
		mgr.MarkFailed(testProxyURL)

		stats := mgr.Stats()[testProxyURL]
		if got := stats.BackoffUntil.Sub(stats.LastFailure); got != 4*time.Minute {
			t.Errorf("backoff = %v, want %v", got, 4*time.Minute)
		}
	})
}

func TestCheck(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			conn.Close()
		}
	}()

	healthy := "socks5h://" + ln.Addr().String()

	mgr := newManager(config.Proxy{
		Proxies:        []string{healthy},
		MaxFailures:    1,
		FailureBackoff: time.Minute,
	})

	mgr.MarkFailed(healthy)

	if err := mgr.Check(t.Context(), healthy); err != nil {
		t.Fatalf("Check(): %v", err)
	}

	stats := mgr.Stats()[healthy]
	if stats.State != proxymgr.StateAvailable || stats.LastCheck.IsZero() {
		t.Errorf("stats after check = %+v", stats)
	}
}

func TestStartHealthCheckerDisabled(t *testing.T) {
	t.Parallel()

	newManager(config.Proxy{HealthCheckInterval: time.Second}).StartHealthChecker(t.Context())
	newManager(config.Proxy{Proxies: []string{testProxyURL}}).StartHealthChecker(t.Context())
}
