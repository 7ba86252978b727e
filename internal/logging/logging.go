// Package logging builds the structured, colorized logger shared by the worker,
// the scheduler and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LevelEnv names the environment variable consulted when no level flag is given.
const LevelEnv = "BACKEND_LOG_LEVEL"

// ParseLevel converts a textual log level into a slog.Level.
// Unknown values fall back to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

// NewLogger constructs a slog.Logger with a tint handler writing to w.
// A nil writer means stderr. Color is disabled when NO_COLOR is set.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    os.Getenv("NO_COLOR") != "",
	})

	return slog.New(handler)
}

// Setup installs a logger as slog's default and returns it.
// An empty level is read from LevelEnv.
func Setup(w io.Writer, level string) *slog.Logger {
	if level == "" {
		level = os.Getenv(LevelEnv)
	}
	logger := NewLogger(w, ParseLevel(level))
	slog.SetDefault(logger)
	return logger
}
