package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Logging is configured exactly once here and
// the logger is passed down explicitly; nothing else in the tree touches
// global logging state.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
