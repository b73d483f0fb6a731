package errutil

import (
	"io"
	"log/slog"
)

// LogMsg logs the error as a warning with a custom message if it is not nil.
func LogMsg(err error, msg string, args ...any) {
	if err != nil {
		allArgs := append([]any{"error", err}, args...)
		slog.Warn(msg, allArgs...)
	}
}

// ReportError logs an unexpected error.
func ReportError(err error, msg string, args ...any) {
	if err != nil {
		allArgs := append([]any{"error", err}, args...)
		slog.Error(msg, allArgs...)
	}
}

// Close closes c and logs a failure instead of dropping it.
func Close(c io.Closer, msg string, args ...any) {
	if c == nil {
		return
	}
	LogMsg(c.Close(), msg, args...)
}

// SetupLogger installs a text handler on w as the default slog logger.
func SetupLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
