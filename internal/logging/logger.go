// Package logging wraps log/slog with nil-safe helpers so every component
// can accept a *slog.Logger without special-casing an absent one.
package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// New builds a structured logger writing JSON to stderr at the given level.
func New(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Nop wraps a *slog.Logger so callers can use printf-style methods without
// nil checks; it is the workhorse behind OrNop.
type Nop struct {
	l *slog.Logger
}

// OrNop returns a Nop wrapping l, or a Nop that discards everything if l is nil.
func OrNop(l *slog.Logger) Nop {
	return Nop{l: l}
}

func (n Nop) Warn(format string, args ...any) {
	if n.l == nil {
		return
	}
	n.l.Warn(fmt.Sprintf(format, args...))
}

func (n Nop) Info(format string, args ...any) {
	if n.l == nil {
		return
	}
	n.l.Info(fmt.Sprintf(format, args...))
}

func (n Nop) Error(format string, args ...any) {
	if n.l == nil {
		return
	}
	n.l.Error(fmt.Sprintf(format, args...))
}

func (n Nop) Debug(format string, args ...any) {
	if n.l == nil {
		return
	}
	n.l.Debug(fmt.Sprintf(format, args...))
}
