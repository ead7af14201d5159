// Package ansi holds terminal escape sequences and colored tags.
package ansi

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"golang.org/x/term"
)

// Colors.
const (
	Reset  = "\x1b[0m"
	Red    = "\x1b[31m"
	Green  = "\x1b[32m"
	Yellow = "\x1b[33m"
	Blue   = "\x1b[34m"
	Cyan   = "\x1b[36m"
)

// Cursor control.
const (
	ClearLine = "\x1b[2K\r"
)

// CursorUp moves the cursor n lines up.
func CursorUp(n int) string {
	if n <= 0 {
		return ""
	}

	return fmt.Sprintf("\x1b[%dA", n)
}

// Terminal is an output stream with its capabilities.
type Terminal struct {
	Out io.Writer
	// TTY is false when output is redirected; escape sequences must not be written then.
	TTY bool
	fd  int
}

// Stdout wraps os.Stdout so that escape sequences also work on Windows consoles.
func Stdout() Terminal {
	fd := int(os.Stdout.Fd())

	return Terminal{
		Out: colorable.NewColorableStdout(),
		TTY: term.IsTerminal(fd),
		fd:  fd,
	}
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewTerminal wraps an arbitrary writer. Its width is always unknown.
func NewTerminal(out io.Writer, tty bool) Terminal {
	return Terminal{Out: out, TTY: tty, fd: -1}
}

// Width returns the terminal width in columns, or 0 when unknown.
func (t Terminal) Width() int {
	if !t.TTY || t.fd < 0 {
		return 0
	}

	w, _, err := term.GetSize(t.fd)
	if err != nil {
		return 0
	}

	return w
}

// Painter colors strings when enabled.
type Painter struct {
	Enabled bool
}

// Paint wraps s in color when the painter is enabled.
func (p Painter) Paint(color, s string) string {
	if !p.Enabled {
		return s
	}

	return color + s + Reset
}

// Info renders an [INFO] line.
func (p Painter) Info(format string, args ...any) string {
	return p.Paint(Green, "[INFO]") + " " + fmt.Sprintf(format, args...)
}

// Warn renders a [WARN] line.
func (p Painter) Warn(format string, args ...any) string {
	return p.Paint(Yellow, "[WARN] "+fmt.Sprintf(format, args...))
}

// Error renders an [ERROR] line.
func (p Painter) Error(format string, args ...any) string {
	return p.Paint(Red, "[ERROR] "+fmt.Sprintf(format, args...))
}

// Skip renders a [SKIP] line.
func (p Painter) Skip(format string, args ...any) string {
	return p.Paint(Yellow, "[SKIP] "+fmt.Sprintf(format, args...))
}

// Done renders a [DONE] line.
func (p Painter) Done(format string, args ...any) string {
	return p.Paint(Green, "[DONE] "+fmt.Sprintf(format, args...))
}
