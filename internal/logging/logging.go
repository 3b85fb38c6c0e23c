// Package logging provides structured logging for the eegstore daemon.
//
// It wraps log/slog so every component logs the same way: one process-wide
// logger, text or JSON, with a "component" attribute per subsystem and
// request-scoped attributes carried in the context.
//
//	logging.Init(slog.LevelInfo, false)
//
//	log := logging.Component("ingestion")
//	log.Info("chunk accepted", "recording_id", rec, "samples", n)
//
//	logging.WithContext(ctx).Warn("window rejected", "error", err)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

// Init installs the process logger writing to stderr. With jsonFormat the
// output is one JSON object per line, otherwise slog's key=value text.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stderr, level, jsonFormat)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var h slog.Handler
	if jsonFormat {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)
}

// Logger returns the process logger, installing an info-level text logger
// on first use.
func Logger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if current.CompareAndSwap(nil, l) {
		return l
	}
	return current.Load()
}

// Component returns a logger tagged with component=name.
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}

// WithContext returns the process logger enriched with the request id,
// patient and recording found in ctx.
func WithContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		l = l.With("request_id", id)
	}
	if p, ok := ctx.Value(patientKey{}).(string); ok {
		l = l.With("patient_id", p)
	}
	if r, ok := ctx.Value(recordingKey{}).(string); ok {
		l = l.With("recording_id", r)
	}
	return l
}

type (
	requestIDKey struct{}
	patientKey   struct{}
	recordingKey struct{}
)

// ContextWithRequestID stores the HTTP request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRecording stores patient and recording ids. Empty values are
// left out.
func ContextWithRecording(ctx context.Context, patientID, recordingID string) context.Context {
	if patientID != "" {
		ctx = context.WithValue(ctx, patientKey{}, patientID)
	}
	if recordingID != "" {
		ctx = context.WithValue(ctx, recordingKey{}, recordingID)
	}
	return ctx
}

// ParseLevel maps a config level name to a slog.Level. Unknown names map
// to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Error logs at error level on the process logger.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}
