// Package logging builds the logger for command line tools. The server uses
// cartridge.NewLogger, which always writes to stdout; hubctl keeps stdout for
// command output and logs to stderr instead.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"analyticshub/internal/config"
)

// NewStderrLogger returns a text logger in development and a JSON logger
// elsewhere, writing to stderr and, outside tests, to the rotated log file
// cartridge.NewLogger would use.
func NewStderrLogger(cfg *config.Config) *slog.Logger {
	return slog.New(newHandler(cfg, os.Stderr))
}

func newHandler(cfg *config.Config, stderr io.Writer) slog.Handler {
	w := stderr
	if cfg.GetLogDirectory() != "" && !cfg.IsTest() {
		w = io.MultiWriter(stderr, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.GetLogDirectory(), cfg.GetAppName()+".log"),
			MaxSize:    cfg.GetLogMaxSizeMB(),
			MaxBackups: cfg.GetLogMaxBackups(),
			MaxAge:     cfg.GetLogMaxAgeDays(),
			Compress:   true,
		})
	}

	level := cfg.GetLogLevel()
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if cfg.IsDevelopment() {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel maps a configured level name onto a slog level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
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
