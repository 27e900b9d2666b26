// Package logging builds the service's slog logger.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Protocol-Lattice/memory-mcp/src/identity"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrUnknownFormat is returned for a format other than text or json.
var ErrUnknownFormat = errors.New("logging: unknown format")

// Options controls where and how records are written.
type Options struct {
	Level  string
	Format string // "text" or "json"

	// File enables rotated file output. Empty means Output (or stderr).
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	Output io.Writer
}

// New returns a logger plus a closer for the underlying file, if any.
// The closer is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.Output != nil {
		w = opts.Output
	}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		w, closer = lj, lj
	}

	hopts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		base = slog.NewTextHandler(w, hopts)
	case "json":
		base = slog.NewJSONHandler(w, hopts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownFormat, opts.Format)
	}
	return slog.New(NewContextHandler(base)), closer, nil
}

// ParseLevel accepts debug, info, warn/warning and error, case-insensitively.
// Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// ContextHandler adds the caller identity bound to the record's context.
// Records logged without a context, or with one carrying no identity, pass
// through unchanged.
type ContextHandler struct {
	base slog.Handler
}

func NewContextHandler(base slog.Handler) *ContextHandler {
	return &ContextHandler{base: base}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if res, ok := identity.FromContext(ctx); ok {
		// slog requires a clone before adding attributes.
		r = r.Clone()
		r.AddAttrs(
			slog.String("user_id", res.ID),
			slog.String("identity_source", string(res.Source)),
		)
	}
	return h.base.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{base: h.base.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{base: h.base.WithGroup(name)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
