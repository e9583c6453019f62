// Package log is the slog wrapper used by the command line tools.
package log

import (
	"io"
	"log/slog"
	"os"
)

var logger *slog.Logger

func init() {
	logger = newLogger(os.Stderr, slog.LevelWarn)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

func SetLevel(level slog.Level) {
	logger = newLogger(os.Stderr, level)
}

// SetOutput redirects logging, keeping the given level
func SetOutput(w io.Writer, level slog.Level) {
	logger = newLogger(w, level)
}
