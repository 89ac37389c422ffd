package core

import (
	"context"
	"log/slog"
)

type loggerKey struct{}
type runIDKey struct{}

// WithLogger attaches a slog logger to the context.
// Callers should prefer passing a logger carrying correlation fields (e.g. run_id, feed_id).
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the slog logger attached to the context, or slog.Default() if absent.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRunID attaches a run identifier to the context for trace correlation.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier attached to the context, if any.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}
