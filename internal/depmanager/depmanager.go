// Package depmanager provisions the external binaries the media engine runs:
// yt-dlp, ffmpeg/ffprobe and deno. They are either resolved from PATH or
// downloaded into the bins directory and refreshed when upstream checksums change.
// Checksums only detect new releases; downloads are not verified against them.
package depmanager

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"streamsnip/internal/config"
	"streamsnip/internal/errs"
)

// BinaryName identifies a managed executable.
type BinaryName string

// Managed executables.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
	BinaryDeno    BinaryName = "deno"
)

// Binaries lists every managed executable in resolution order.
var Binaries = []BinaryName{BinaryYTdlp, BinaryFFmpeg, BinaryFFprobe, BinaryDeno}

const (
	platformLinux = "linux"
	archARM64     = "arm64"
	archAMD64     = "amd64"
)

const (
	httpTimeout    = 10 * time.Minute
	permExecutable = 0o755
	permFile       = 0o644
	sumsFilename   = ".sha256sums.json"
)

// Platform is an OS and architecture pair.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// artifact is one release download. An archive yields every member; a plain
// download is the binary itself.
type artifact struct {
	binary  BinaryName
	url     string
	members []BinaryName
}

// asset is the file name upstream lists in its checksum files.
func (a artifact) asset() string {
	return path.Base(a.url)
}

func (a artifact) provides() []BinaryName {
	if len(a.members) == 0 {
		return []BinaryName{a.binary}
	}

	return a.members
}

// Manager resolves binary paths.
type Manager struct {
	log      *slog.Logger
	cfg      config.DepManager
	platform Platform
	client   *http.Client

	mu     sync.RWMutex
	paths  map[BinaryName]string
	remote map[string]string // asset -> sha256 announced upstream
	local  map[string]string // asset -> sha256 of the installed release

	updating atomic.Bool
}

// New creates a manager for the running platform.
func New(log *slog.Logger, cfg config.DepManager) *Manager {
	return &Manager{
		log:      log.With(slog.String("package", "depmanager")),
		cfg:      cfg,
		platform: Platform{OS: runtime.GOOS, Arch: runtime.GOARCH},
		client:   &http.Client{Timeout: httpTimeout},
		paths:    make(map[BinaryName]string),
		remote:   make(map[string]string),
		local:    make(map[string]string),
	}
}

// Start resolves every binary. Managed installs also start the update checker.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.UseSystemBinaries {
		return m.LookupSystem(ctx)
	}

	if err := m.Install(ctx); err != nil {
		return err
	}

	m.StartUpdateChecker(ctx)

	return nil
}

// LookupSystem resolves binaries from PATH. Only yt-dlp is mandatory; the
// engine runs without ffmpeg or deno at reduced capability.
func (m *Manager) LookupSystem(ctx context.Context) error {
	for _, name := range Binaries {
		p, err := exec.LookPath(string(name))
		if err != nil {
			if name == BinaryYTdlp {
				return fmt.Errorf("%w: %s in PATH: %w", errs.ErrBinaryNotFound, name, err)
			}

			m.log.WarnContext(ctx, "optional binary not in PATH", slog.String("binary", string(name)))

			continue
		}

		m.setPath(name, p)
	}

	m.log.DebugContext(ctx, "system binaries resolved", slog.Any("binaries", m.Paths()))

	return nil
}

// Path returns the resolved location of name.
func (m *Manager) Path(name BinaryName) (string, error) {
	m.mu.RLock()
	p, ok := m.paths[name]
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", errs.ErrBinaryNotFound, name)
	}

	return p, nil
}

// Paths returns a copy of every resolved location.
func (m *Manager) Paths() map[BinaryName]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.paths)
}

func (m *Manager) setPath(name BinaryName, p string) {
	m.mu.Lock()
	m.paths[name] = p
	m.mu.Unlock()
}

// binPath is where a managed binary lives inside the bins directory.
func (m *Manager) binPath(name BinaryName) string {
	return filepath.Join(m.cfg.BinsDir, string(name))
}

// artifacts returns the release downloads for the current platform.
func (m *Manager) artifacts() ([]artifact, error) {
	if m.platform.OS != platformLinux {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedPlatform, m.platform)
	}

	pick := func(arm64, amd64 string) string {
		if m.platform.Arch == archARM64 {
			return arm64
		}

		return amd64
	}

	if m.platform.Arch != archARM64 && m.platform.Arch != archAMD64 {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedPlatform, m.platform)
	}

	arts := []artifact{
		{
			binary:  BinaryFFmpeg,
			url:     pick(m.cfg.FFmpegLinuxARM64, m.cfg.FFmpegLinuxAMD64),
			members: []BinaryName{BinaryFFmpeg, BinaryFFprobe},
		},
		{
			binary:  BinaryDeno,
			url:     pick(m.cfg.DenoLinuxARM64, m.cfg.DenoLinuxAMD64),
			members: []BinaryName{BinaryDeno},
		},
		{
			binary: BinaryYTdlp,
			url:    pick(m.cfg.YTdlpLinuxARM64, m.cfg.YTdlpLinuxAMD64),
		},
	}

	for _, a := range arts {
		if a.url == "" {
			return nil, fmt.Errorf("no download url for %s on %s", a.binary, m.platform)
		}
	}

	return arts, nil
}

// installed reports whether every binary of a is present and non-empty.
func (m *Manager) installed(a artifact) bool {
	for _, name := range a.provides() {
		info, err := os.Stat(m.binPath(name))
		if err != nil || info.Size() == 0 {
			return false
		}
	}

	return true
}

func (m *Manager) register(a artifact) {
	for _, name := range a.provides() {
		m.setPath(name, m.binPath(name))
	}
}
