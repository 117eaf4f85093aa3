// Package logger wires log/slog into the client library. The library
// itself only speaks at debug level (connection lifecycle, pool
// decisions); the benchmark driver raises the level when asked to be
// verbose. Configuration is environment-driven so a consumer never has to
// touch this package to change output.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ContextKey marks values the *Context helpers lift out of a context and
// into the log record.
type ContextKey string

const (
	// ConnIDKey carries the connection identifier.
	ConnIDKey ContextKey = "conn_id"
	// OpKey carries the operation name.
	OpKey ContextKey = "op"
	// ScenarioKey carries the benchmark scenario name.
	ScenarioKey ContextKey = "scenario"
)

// contextKeys is the fixed set of keys withContextAttrs looks for.
var contextKeys = []ContextKey{ConnIDKey, OpKey, ScenarioKey}

// current holds the process logger; SetLogLevel swaps it atomically so
// in-flight goroutines never observe a half-built logger.
var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(NewLogger(LoadConfig()))
}

// Default returns the logger the package-level helpers write to.
func Default() *slog.Logger {
	return current.Load()
}

// SetLogLevel rebuilds the process logger at the given level, keeping the
// rest of the environment-derived configuration.
func SetLogLevel(level slog.Level) {
	cfg := LoadConfig()
	cfg.Level = level
	current.Store(NewLogger(cfg))
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

// Debug writes a debug record through the process logger.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info writes an info record through the process logger.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn writes a warning record through the process logger.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error writes an error record through the process logger.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// DebugContext is Debug plus any recognized context values.
func DebugContext(ctx context.Context, msg string, args ...any) {
	Default().Debug(msg, withContextAttrs(ctx, args)...)
}

// InfoContext is Info plus any recognized context values.
func InfoContext(ctx context.Context, msg string, args ...any) {
	Default().Info(msg, withContextAttrs(ctx, args)...)
}

// withContextAttrs appends every context value found under one of the
// recognized keys to the attribute list.
func withContextAttrs(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok {
			args = append(args, string(key), v)
		}
	}
	return args
}
