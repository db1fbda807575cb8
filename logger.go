package gridstore

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with dataset-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable
	}))
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// WithVar adds a variable field to the logger.
func (l *Logger) WithVar(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("var", name),
	}
}

// LogOpen logs a dataset open.
func (l *Logger) LogOpen(ctx context.Context, dims, vars int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "dataset opened",
			"dims", dims,
			"vars", vars,
		)
	}
}

// LogClose logs a dataset close.
func (l *Logger) LogClose(ctx context.Context, stats CacheStats) {
	l.InfoContext(ctx, "dataset closed",
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses,
		"cache_evictions", stats.Evictions,
	)
}

// LogRead logs a hyperslab read.
func (l *Logger) LogRead(ctx context.Context, v string, slab Hyperslab, bytes int, source string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read failed",
			"var", v,
			"slab", slab.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "read completed",
			"var", v,
			"slab", slab.String(),
			"bytes", bytes,
			"source", source,
		)
	}
}

// LogFetch logs a backend fetch made on a cache miss.
func (l *Logger) LogFetch(ctx context.Context, v string, bytes int, cached bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"var", v,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"var", v,
			"bytes", bytes,
			"cached", cached,
		)
	}
}

// LogWrite logs a hyperslab write.
func (l *Logger) LogWrite(ctx context.Context, v string, slab Hyperslab, invalidated int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"var", v,
			"slab", slab.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write completed",
			"var", v,
			"slab", slab.String(),
			"invalidated", invalidated,
		)
	}
}

// LogEviction logs a cache node leaving the cache.
func (l *Logger) LogEviction(ctx context.Context, key string, bytes int64) {
	l.DebugContext(ctx, "cache node evicted",
		"key", key,
		"bytes", bytes,
	)
}

// LogPrefetch logs a prefetch.
func (l *Logger) LogPrefetch(ctx context.Context, vars int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "prefetch failed",
			"vars", vars,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "prefetch completed",
			"vars", vars,
			"bytes", bytes,
		)
	}
}

// LogCacheBypass logs a fetch result that could not be cached.
func (l *Logger) LogCacheBypass(ctx context.Context, v string, bytes int, err error) {
	l.WarnContext(ctx, "fetch result not cached",
		"var", v,
		"bytes", bytes,
		"error", err,
	)
}
