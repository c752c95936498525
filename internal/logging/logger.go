package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type options struct {
	w    io.Writer
	json bool
}

type Option func(*options)

// WithWriter sends log lines to w instead of Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.w = w
	}
}

// WithJSON switches the handler to JSON lines.
func WithJSON(enabled bool) Option {
	return func(o *options) {
		o.json = enabled
	}
}

// New creates a configured application logger.
// It writes to Stderr (to keep Stdout for command output and JSON-RPC).
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level, opts ...Option) *slog.Logger {
	o := options{w: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	hopts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if o.json {
		return slog.New(slog.NewJSONHandler(o.w, hopts))
	}
	return slog.New(slog.NewTextHandler(o.w, hopts))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug, info, warn and error (any case) to a level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
