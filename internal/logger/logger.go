// Package logger wires log/slog for the task store: JSON lines on stdout
// with source locations, so mutation and query logs correlate with the
// code that emitted them.
package logger

import (
	"log/slog"
	"os"
)

// Setup installs the process-wide slog handler at the given level.
func Setup(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps the CLI's log-level string to a slog.Level.
// Anything other than "debug", "warn" or "error" means info.
func ParseLevel(level string) slog.Level {
	switch level {
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
