package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// RunLogger is a structured logger with automatic trace correlation.
// It wraps slog.Logger and stamps every entry with the run id plus the
// OpenTelemetry trace and span ids from the context.
type RunLogger struct {
	logger *slog.Logger
	runID  string
}

// NewRunLogger creates a logger scoped to one orchestration run. Every
// log entry carries the run id, and entries emitted inside a span also
// carry trace_id and span_id.
func NewRunLogger(handler slog.Handler, runID string) *RunLogger {
	return &RunLogger{
		logger: slog.New(handler),
		runID:  runID,
	}
}

// Debug logs a debug-level message with automatic trace correlation.
func (l *RunLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Debug(msg, args...)
}

// Info logs an info-level message with automatic trace correlation.
func (l *RunLogger) Info(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Info(msg, args...)
}

// Warn logs a warning-level message with automatic trace correlation.
func (l *RunLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Warn(msg, args...)
}

// Error logs an error-level message with automatic trace correlation.
func (l *RunLogger) Error(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Error(msg, args...)
}

// WithContext creates a new slog.Logger carrying the run id and, when the
// context holds a valid span, the OpenTelemetry trace_id and span_id.
func (l *RunLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.logger.With(slog.String("run_id", l.runID))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		logger = logger.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}

	return logger
}

// NewJSONHandler creates a JSON log handler with the specified output and
// level. JSON format is the production default.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewTextHandler creates a text log handler with the specified output and
// level. Text format is human-readable and useful for development.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewHandler builds a handler from a LoggingConfig, selecting the format
// and level it names.
func NewHandler(w io.Writer, cfg LoggingConfig) slog.Handler {
	level := ParseLevel(cfg.Level)
	if strings.ToLower(cfg.Format) == "text" {
		return NewTextHandler(w, level)
	}
	return NewJSONHandler(w, level)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info for
// unknown names.
func ParseLevel(level string) slog.Level {
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
