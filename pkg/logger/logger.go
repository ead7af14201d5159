package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	AddSource bool
	Level     string
	// Output defaults to os.Stderr; stdout belongs to the progress display.
	Output io.Writer
}

func New(opt *Options) (*slog.Logger, error) {
	if opt == nil {
		return nil, fmt.Errorf("logger options are required")
	}

	opts := &slog.HandlerOptions{
		AddSource: opt.AddSource,
	}

	level, err := ParseLevel(opt.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts.Level = level

	out := opt.Output
	if out == nil {
		out = os.Stderr
	}

	log := slog.New(slog.NewJSONHandler(out, opts))
	slog.SetDefault(log)

	return log, err
}

// OpenFile opens path for appending log lines. An empty path returns os.Stderr.
func OpenFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stderr}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// ParseLevel converts a string level to slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", level)
	}
}
