// Package logging provides structured logging configuration using log/slog.
//
// This package integrates with chi's RequestID middleware and with the sync
// cycle context so that request IDs, cycle IDs and table names travel through
// structured log entries, enabling tracing of a request or a cycle end to end.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
)

// FileOptions enables a rotating log file next to stdout.
// An empty Path disables file output.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
//
// The returned function closes the log file, if any.
func Setup(level, format string, file FileOptions) func() error {
	var w io.Writer = os.Stdout
	closeFn := func() error { return nil }

	if file.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			LocalTime:  true,
		}
		w = io.MultiWriter(os.Stdout, rotator)
		closeFn = rotator.Close
	}

	slog.SetDefault(New(w, level, format))
	return closeFn
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// FromContext returns the default logger enriched with request context.
//
// Usage:
//
//	func handleRequest(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("sync triggered", "table", tableKey)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	return Enrich(slog.Default(), ctx)
}

// Enrich adds the chi request id, the sync cycle id and the table being
// synced to logger, for whichever of them ctx carries.
func Enrich(logger *slog.Logger, ctx context.Context) *slog.Logger {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if cycleID := core.CycleIDFromContext(ctx); cycleID != "" {
		logger = logger.With("cycle_id", cycleID)
	}
	if table := core.TableFromContext(ctx); table != "" {
		logger = logger.With("table", table)
	}
	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	resetLogger := logging.WithFields(ctx, "tables", names)
//	resetLogger.Info("reset started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
