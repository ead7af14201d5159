// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	App        App
	API        API
	Job        Job
	Dir        Dir
	Display    Display
	Engine     Engine
	DepManager DepManager
	Proxy      Proxy
	Metrics    Metrics
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"STREAMSNIP_APP_LOG_LEVEL" envDefault:"warn"`
	// LogFile receives log lines instead of stderr when set.
	LogFile string `env:"STREAMSNIP_APP_LOG_FILE" envDefault:""`
}

// API holds the clip metadata provider configuration.
type API struct {
	Endpoint  string        `env:"STREAMSNIP_API_ENDPOINT"   envDefault:"https://streamsnip.com/extension/clips"`
	Timeout   time.Duration `env:"STREAMSNIP_API_TIMEOUT"    envDefault:"15s"`
	UserAgent string        `env:"STREAMSNIP_API_USER_AGENT" envDefault:"streamsnip-cli"`
}

// Job holds clip worker pool configuration.
type Job struct {
	Workers int `env:"STREAMSNIP_JOB_WORKERS" envDefault:"5"`
	// Timeout bounds one clip download; 0 disables it.
	Timeout time.Duration `env:"STREAMSNIP_JOB_TIMEOUT" envDefault:"0"`
}

// Dir holds directory paths for clips, engine cache, and cookie file.
type Dir struct {
	// Clips is kept relative so output paths read clips/<stream_id>/...
	Clips string `env:"STREAMSNIP_DIR_CLIPS" envDefault:"clips"`
	Cache string `env:"STREAMSNIP_DIR_CACHE" envDefault:""` // yt-dlp cache (meta, sigs)

	// must contain cookies.txt file
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"STREAMSNIP_DIR_COOKIE_FILE" envDefault:""`
}

// SetAbsPaths converts cache and cookie paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error

	if c.Cache != "" {
		if c.Cache, err = filepath.Abs(c.Cache); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	return nil
}

// Display holds progress display configuration.
type Display struct {
	Interval time.Duration `env:"STREAMSNIP_DISPLAY_INTERVAL" envDefault:"200ms"`
	// NoColor disables ANSI colors in prompts, tags and the progress block when set to any non-empty value.
	// see: https://no-color.org
	NoColor string `env:"NO_COLOR"`
}

// Colors reports whether colored output is allowed.
func (d Display) Colors() bool {
	return d.NoColor == ""
}

// Engine holds media engine configuration.
type Engine struct {
	// Container is the output extension when no custom format is chosen.
	Container string `env:"STREAMSNIP_ENGINE_CONTAINER" envDefault:"mp4"`
	// see: https://github.com/yt-dlp/yt-dlp#video-selection
	MatchFilter string `env:"STREAMSNIP_ENGINE_MATCH_FILTER" envDefault:"!is_live & live_status!=is_upcoming & availability=public"` //nolint:lll
	// ProgressFreq rate limits progress callbacks per clip.
	ProgressFreq time.Duration `env:"STREAMSNIP_ENGINE_PROGRESS_FREQ" envDefault:"200ms"`
}

// Metrics holds the optional metrics listener configuration.
type Metrics struct {
	// Addr enables /metrics and /v1/readyz when set, e.g. ":9090".
	Addr            string        `env:"STREAMSNIP_METRICS_ADDR"             envDefault:""`
	ShutdownTimeout time.Duration `env:"STREAMSNIP_METRICS_SHUTDOWN_TIMEOUT" envDefault:"3s"`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	cfg.Proxy.parseList()

	return cfg, nil
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is the directory where binaries are stored
	BinsDir string `env:"STREAMSNIP_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// UseSystemBinaries indicates whether to use system-installed binaries or download them.
	UseSystemBinaries bool `env:"STREAMSNIP_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"true"`
	// UpdateInterval is how often to check for binary updates while the process runs
	UpdateInterval time.Duration `env:"STREAMSNIP_DEPMANAGER_UPDATE_INTERVAL" envDefault:"24h"`

	// ffmpeg binary URLs per platform.
	FFmpegSHA256SumsURL string `env:"STREAMSNIP_DEPMANAGER_FFMPEG_SHA256SUMS_URL" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/checksums.sha256"`                        //nolint:lll
	FFmpegLinuxARM64    string `env:"STREAMSNIP_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64    string `env:"STREAMSNIP_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll

	// yt-dlp binary URLs per platform.
	YTdlpSHA256SumsURL string `env:"STREAMSNIP_DEPMANAGER_YTDLP_SHA256SUMS_URL" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/SHA2-256SUMS"`      //nolint:lll
	YTdlpLinuxARM64    string `env:"STREAMSNIP_DEPMANAGER_YTDLP_LINUX_ARM64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64    string `env:"STREAMSNIP_DEPMANAGER_YTDLP_LINUX_AMD64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll

	// deno binary URLs per platform. yt-dlp uses it to solve YouTube JS challenges.
	DenoSHA256SumsURL string `env:"STREAMSNIP_DEPMANAGER_DENO_SHA256SUMS_URL" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-aarch64-unknown-linux-gnu.zip.sha256sum,https://github.com/denoland/deno/releases/latest/download/deno-x86_64-unknown-linux-gnu.zip.sha256sum"` //nolint:lll
	DenoLinuxARM64    string `env:"STREAMSNIP_DEPMANAGER_DENO_LINUX_ARM64" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-aarch64-unknown-linux-gnu.zip"`                                                                                                                    //nolint:lll
	DenoLinuxAMD64    string `env:"STREAMSNIP_DEPMANAGER_DENO_LINUX_AMD64" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-x86_64-unknown-linux-gnu.zip"`                                                                                                                     //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// Proxy holds proxy configuration for engine invocations.
type Proxy struct {
	// List is a comma-separated list of proxy URLs, e.g. socks5h://host:1080
	List string `env:"STREAMSNIP_PROXY_LIST" envDefault:""`
	// HealthCheckInterval is how often to check proxy health
	HealthCheckInterval time.Duration `env:"STREAMSNIP_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	// FailureBackoff is the initial backoff duration for failed proxies
	FailureBackoff time.Duration `env:"STREAMSNIP_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is the number of failures before a proxy is put into backoff
	MaxFailures int `env:"STREAMSNIP_PROXY_MAX_FAILURES" envDefault:"3"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// SetList replaces the proxy list, e.g. from a command line flag.
func (p *Proxy) SetList(list string) {
	p.List = list
	p.Proxies = nil
	p.parseList()
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}
