package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
)

// Config describes how the process logger is built.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	AddSource bool   // annotate records with file:line
	Writer    io.Writer
}

// DefaultConfig is text output on stderr at info level.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "text",
		Writer: os.Stderr,
	}
}

// LoadConfig reads LOG_LEVEL, LOG_FORMAT and LOG_ADD_SOURCE from the
// environment on top of the defaults. Unrecognized values are ignored.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if s := os.Getenv("LOG_LEVEL"); s != "" {
		cfg.Level = parseLevel(s, cfg.Level)
	}
	if s := os.Getenv("LOG_FORMAT"); s == "text" || s == "json" {
		cfg.Format = s
	}
	if s := os.Getenv("LOG_ADD_SOURCE"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			cfg.AddSource = v
		}
	}

	return cfg
}

// parseLevel accepts the standard level names or a raw slog integer.
func parseLevel(s string, fallback slog.Level) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	if n, err := strconv.Atoi(s); err == nil {
		return slog.Level(n)
	}
	return fallback
}

// NewLogger builds a logger from the configuration.
func NewLogger(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
