// Package output provides terminal output utilities for swapsafe:
// severity-tagged log lines for transaction transitions, a spinner for
// long-running external steps, and table rendering for reports and
// snapshot listings.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// Logger emits severity-tagged lines for the major transitions of a
// transaction. The CLI is its only consumer; components return data and
// errors rather than printing.
type Logger struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewLogger creates a Logger writing to w. Color is enabled only when
// stdout is a TTY and NO_COLOR is unset.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w, color: IsColorEnabled()}
}

// SetColor overrides color detection (useful for testing).
func (l *Logger) SetColor(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = on
}

// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.line("", "", format, args...)
}

// Successf logs a success line with a leading check mark.
func (l *Logger) Successf(format string, args ...interface{}) {
	l.line("✓ ", colorGreen, format, args...)
}

// Warnf logs a warning line.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.line("⚠ ", colorYellow, format, args...)
}

// Errorf logs an error line.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.line("✗ ", colorRed, format, args...)
}

func (l *Logger) line(prefix, color, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.color && color != "" {
		fmt.Fprintf(l.w, "%s%s%s%s\n", color, prefix, msg, colorReset)
	} else {
		fmt.Fprintf(l.w, "%s%s\n", prefix, msg)
	}
}
