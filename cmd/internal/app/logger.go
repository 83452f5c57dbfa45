package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// Log formats.
const (
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)

// NewLogger builds the process logger from cfg and installs it as the slog
// default. Production defaults to JSON; development to the pretty console
// format with colors when stdout is a terminal.
func NewLogger(cfg Config) *slog.Logger {
	log := newLogger(os.Stdout, cfg.LogLevel, resolveLogFormat(cfg), !color.NoColor)
	slog.SetDefault(log)
	return log
}

func newLogger(w io.Writer, level, format string, colored bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: true,
	}

	var h slog.Handler
	switch format {
	case LogFormatPretty:
		opts.AddSource = false
		h = newPrettyHandler(w, opts, colored)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func resolveLogFormat(cfg Config) string {
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case LogFormatJSON:
		return LogFormatJSON
	case LogFormatPretty, "text", "console":
		return LogFormatPretty
	}
	if cfg.Production() {
		return LogFormatJSON
	}
	return LogFormatPretty
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
