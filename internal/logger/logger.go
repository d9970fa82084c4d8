// Package logger owns the process-global slog instance. Long-lived
// components log through the *slog.Logger carried in AppContext; the
// package-level helpers exist for code that runs before the context is
// assembled, like config loading and startup failures in main.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/slowtunes/slowtunes/internal/config"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// InitFromConfig builds the global logger from app config. Safe to call
// more than once; the last call wins. A nil config yields the default
// info-level text logger.
func InitFromConfig(c *config.Config) {
	mu.Lock()
	defer mu.Unlock()
	logger = build(c)
}

func build(c *config.Config) *slog.Logger {
	var (
		level     slog.Leveler = slog.LevelInfo
		format                 = "text"
		component string
		source    bool
	)
	if c != nil {
		level = parseLevel(c.Log.Level)
		format = strings.ToLower(c.Log.Format)
		component = c.Log.Component
		source = c.Log.Source
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: source,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// human-readable timestamps for the text handler used in dev
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, time.Now().Format("2006-01-02 15:04:05"))
			}
			return a
		}
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	base := slog.New(handler)
	if component != "" {
		base = base.With("component", component)
	}
	return base
}

// L returns the global logger. Always returns a non-nil instance.
func L() *slog.Logger {
	mu.RLock()
	if logger != nil {
		defer mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	// fall back to the defaults if nothing initialized the logger yet
	InitFromConfig(nil)

	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With creates a child logger with additional attributes.
func With(args ...any) *slog.Logger { return L().With(args...) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
