package arraystream

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with arraystream-specific context.
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000),
		})),
	}
}

// WithReader adds the reader name and array URI to the logger.
func (l *Logger) WithReader(name, uri string) *Logger {
	return &Logger{
		Logger: l.Logger.With("reader", name, "uri", uri),
	}
}

// WithStream adds a stream number field to the logger.
func (l *Logger) WithStream(stream int) *Logger {
	return &Logger{
		Logger: l.Logger.With("stream", stream),
	}
}

// LogIndexBuild logs an index construction.
func (l *Logger) LogIndexBuild(ctx context.Context, keys, threads int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"keys", keys,
			"threads", threads,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "index built",
			"keys", keys,
			"threads", threads,
			"elapsed", elapsed,
		)
	}
}

// LogSubmit logs a reader submission.
func (l *Logger) LogSubmit(ctx context.Context, fragments int, bufferBytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "submit failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query submitted",
			"fragments", fragments,
			"buffer_bytes", bufferBytes,
		)
	}
}

// LogBatch logs one batch read, or a failed read.
func (l *Logger) LogBatch(ctx context.Context, rows int64, complete bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "batch read",
			"rows", rows,
			"complete", complete,
		)
	}
}

// LogExhausted logs the end of a reader's results.
func (l *Logger) LogExhausted(ctx context.Context, batches int, rows int64) {
	l.DebugContext(ctx, "reader exhausted",
		"batches", batches,
		"rows", rows,
	)
}

// LogStream logs the end of a coordinator run.
func (l *Logger) LogStream(ctx context.Context, streams, batches int, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stream failed",
			"streams", streams,
			"batches", batches,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "stream completed",
			"streams", streams,
			"batches", batches,
			"rows", rows,
		)
	}
}
