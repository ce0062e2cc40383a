package cli

import (
	"io"
	"log/slog"
)

// newLogger returns the process logger. Library packages log at debug
// level, which is only shown with --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
