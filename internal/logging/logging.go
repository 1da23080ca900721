package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describe the desired logging setup. FilePath, when set, mirrors
// output into a size-rotated log file alongside stdout.
type Options struct {
	Level    string
	Format   string
	FilePath string
}

// SwappableHandler is a slog.Handler whose inner handler can be replaced
// atomically at runtime, letting every logger derived from it pick up a
// new format without re-plumbing.
type SwappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

// NewSwappableHandler creates a SwappableHandler wrapping h.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	s := &SwappableHandler{}
	s.inner.Store(&h)
	return s
}

// Swap replaces the inner handler.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.inner.Store(&h)
}

// Enabled delegates to the inner handler.
func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.inner.Load()).Enabled(ctx, level)
}

// Handle delegates to the inner handler.
func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return (*s.inner.Load()).Handle(ctx, r)
}

// WithAttrs returns a new SwappableHandler whose inner handler has the attrs.
func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSwappableHandler((*s.inner.Load()).WithAttrs(attrs))
}

// WithGroup returns a new SwappableHandler whose inner handler has the group.
func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return NewSwappableHandler((*s.inner.Load()).WithGroup(name))
}

// Manager owns the process logger and applies runtime level and format
// changes, typically driven by persisted settings.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *SwappableHandler

	mu     sync.Mutex
	opts   Options
	closer io.Closer
}

// New creates a Manager and the root logger.
func New(opts Options) (*Manager, *slog.Logger) {
	lvl := &slog.LevelVar{}
	lvl.Set(ParseLevel(opts.Level))

	writer, closer := newWriter(opts.FilePath)
	handler := NewSwappableHandler(newHandler(writer, lvl, opts.Format))

	m := &Manager{
		levelVar: lvl,
		handler:  handler,
		opts:     opts,
		closer:   closer,
	}
	return m, slog.New(handler)
}

// SetLevel changes the minimum level. Takes effect immediately for every
// derived logger.
func (m *Manager) SetLevel(level string) error {
	if !ValidLevel(level) {
		return fmt.Errorf("invalid log level: %s", level)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Level = level
	m.levelVar.Set(ParseLevel(level))
	return nil
}

// SetFormat changes the output format, rebuilding the handler in place.
func (m *Manager) SetFormat(format string) error {
	if !ValidFormat(format) {
		return fmt.Errorf("invalid log format: %s", format)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if format == m.opts.Format {
		return nil
	}
	m.opts.Format = format

	writer, closer := newWriter(m.opts.FilePath)
	if m.closer != nil {
		m.closer.Close() //nolint:errcheck
	}
	m.closer = closer
	m.handler.Swap(newHandler(writer, m.levelVar, format))
	return nil
}

// Options returns the current logging options.
func (m *Manager) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// Close releases the rotated log file, if one is open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

// ParseLevel converts a level name to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a known log level.
func ValidLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat reports whether s names a known log format.
func ValidFormat(s string) bool {
	return s == "text" || s == "json"
}

func newWriter(filePath string) (io.Writer, io.Closer) {
	if filePath == "" {
		return os.Stdout, nil
	}
	lj := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     30,
	}
	return io.MultiWriter(os.Stdout, lj), lj
}

func newHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: leveler}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
