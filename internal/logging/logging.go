// Package logging provides structured logging via log/slog, with a
// rotated JSON file sink and a human-readable stderr sink sharing one
// dynamic level, following the same split the teacher codebase uses.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LevelTrace is below slog.LevelDebug, for per-chunk DSP tracing that
	// is normally compiled-in but never emitted in production.
	LevelTrace = slog.Level(-8)
)

var (
	mu            sync.RWMutex
	root          *slog.Logger
	currentLevel  = new(slog.LevelVar)
	fileCloser    func() error
	initialized   bool
	levelOverride = map[string]string{
		"trace": "TRACE",
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
	}
)

// Options configures Init.
type Options struct {
	// Level is one of trace|debug|info|warn|error (case-insensitive).
	Level string
	// FilePath is the rotated JSON log destination. Empty disables file logging.
	FilePath string
	// MaxSizeMB, MaxBackups, MaxAgeDays configure lumberjack rotation.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init configures the global logger. Safe to call once at process startup;
// a second call replaces the previous configuration and closes the old
// file sink.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	currentLevel.Set(parseLevel(opts.Level))

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		}),
	}

	if fileCloser != nil {
		_ = fileCloser()
		fileCloser = nil
	}

	if opts.FilePath != "" {
		dir := filepath.Dir(opts.FilePath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log directory %s: %w", dir, err)
			}
		}
		lj := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    firstNonZero(opts.MaxSizeMB, 100),
			MaxBackups: firstNonZero(opts.MaxBackups, 3),
			MaxAge:     firstNonZero(opts.MaxAgeDays, 28),
		}
		fileCloser = lj.Close
		handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		}))
	}

	root = slog.New(multiHandler(handlers))
	slog.SetDefault(root)
	initialized = true
	return nil
}

func firstNonZero(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
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

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// ForService returns a child logger tagged with the given subsystem name,
// mirroring the teacher's per-package child logger pattern.
func ForService(name string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		return slog.Default().With("service", name)
	}
	return root.With("service", name)
}

// SetLevel changes the dynamic log level at runtime.
func SetLevel(s string) {
	currentLevel.Set(parseLevel(s))
}

// Close releases the file sink, if any. Call during graceful shutdown.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileCloser != nil {
		err := fileCloser()
		fileCloser = nil
		return err
	}
	return nil
}

// multiHandler fans a record out to every handler in order, matching the
// teacher's split between a human-readable sink and a structured one.
type multiHandlerT struct {
	handlers []slog.Handler
}

func multiHandler(hs []slog.Handler) slog.Handler {
	return &multiHandlerT{handlers: hs}
}

func (m *multiHandlerT) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandlerT) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandlerT) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandlerT{handlers: next}
}

func (m *multiHandlerT) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandlerT{handlers: next}
}
