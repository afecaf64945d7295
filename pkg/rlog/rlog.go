// Package rlog is relaynet's structured logger: a thin wrapper around
// github.com/charmbracelet/log that keeps the teacher's Banner/Section
// startup helpers (printed as plain text) and leveled call shape, but replaces its
// hand-rolled ANSI escapes with structured, per-subsystem-prefixed fields,
// matching the WithPrefix convention used around the ARQ machinery in
// katzenpost's client2/arq.go.
package rlog

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger wraps a charmbracelet/log.Logger.
type Logger struct {
	l *charmlog.Logger
}

// New returns a Logger writing to stderr at Info level.
func New() *Logger {
	return &Logger{l: charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           charmlog.InfoLevel,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})}
}

// WithPrefix returns a child logger tagged with the given subsystem prefix,
// e.g. rlog.New().WithPrefix("reliable").
func (lg *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{l: lg.l.WithPrefix(prefix)}
}

// With returns a child logger carrying the given structured key/value
// fields on every subsequent call.
func (lg *Logger) With(keyvals ...any) *Logger {
	return &Logger{l: lg.l.With(keyvals...)}
}

func (lg *Logger) SetLevel(level charmlog.Level) { lg.l.SetLevel(level) }

func (lg *Logger) Debug(msg string, keyvals ...any) { lg.l.Debug(msg, keyvals...) }
func (lg *Logger) Info(msg string, keyvals ...any)  { lg.l.Info(msg, keyvals...) }
func (lg *Logger) Warn(msg string, keyvals ...any)  { lg.l.Warn(msg, keyvals...) }
func (lg *Logger) Error(msg string, keyvals ...any) { lg.l.Error(msg, keyvals...) }
func (lg *Logger) Fatal(msg string, keyvals ...any) { lg.l.Fatal(msg, keyvals...) }

// Banner prints the application banner, once, at startup.
func Banner(title, version string) {
	fmt.Println()
	fmt.Printf("  %s\n", title)
	fmt.Printf("  version %s\n", version)
	fmt.Println()
}

// Section prints a section header, grouping a phase of startup logging.
func Section(title string) {
	border := "────────────────────────────────────────────────"
	fmt.Printf("\n%s\n %s\n%s\n\n", border, title, border)
}
