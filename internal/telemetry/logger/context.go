package logger

import (
	"context"
	"log/slog"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey contextKey = "idbridge.logger"
	runIDKey  contextKey = "idbridge.run_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns slog.Default() if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithRunID adds a bootstrap run id to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run id from context.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also adds run_id when present.
func L(ctx context.Context) *slog.Logger {
	l := FromContext(ctx)
	if id := RunIDFromContext(ctx); id != "" {
		l = l.With("run_id", id)
	}
	return l
}

// Ctx returns base enriched with the run id carried by ctx, if any.
func Ctx(ctx context.Context, base *slog.Logger) *slog.Logger {
	base = OrDefault(base)
	if id := RunIDFromContext(ctx); id != "" {
		return base.With("run_id", id)
	}
	return base
}
