package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pictree/pictree/internal/config"
)

// Rotation limits for the log file sink.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

// buildLogger creates the slog.Logger described by the logging config:
// level from log_level, destination from log_file (stderr when unset, with
// rotation when set), and handler from log_format.
func buildLogger(cfg *config.Config) *slog.Logger {
	out := logOutput(cfg.Logging)
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.LogLevel)}

	if useJSONHandler(cfg.Logging.LogFormat, out) {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	return slog.New(slog.NewTextHandler(out, opts))
}

// logOutput returns stderr, or a rotating file writer when log_file is set.
func logOutput(l config.LoggingConfig) io.Writer {
	if l.LogFile == "" {
		return os.Stderr
	}

	return &lumberjack.Logger{
		Filename:   l.LogFile,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     l.LogRetentionDays,
	}
}

// useJSONHandler decides the handler type. "auto" picks text for interactive
// terminals and JSON everywhere else (pipes, files, service managers).
func useJSONHandler(format string, out io.Writer) bool {
	if flagJSON {
		return true
	}

	switch strings.ToLower(format) {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := out.(*os.File)

	return !ok || !isatty.IsTerminal(f.Fd())
}

// parseLogLevel maps a config level string to a slog level. Validation has
// already rejected anything unrecognized; default to info regardless.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
