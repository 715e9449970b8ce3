// Package logger wraps log/slog with the handful of structured events the
// service emits repeatedly.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger is a *slog.Logger with domain helpers. It is injected everywhere,
// never global.
type Logger struct {
	*slog.Logger
}

// New logs JSON at info level, or text at debug level when env is
// development or test.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

func NewWithWriter(env string, w io.Writer) *Logger {
	switch strings.ToLower(env) {
	case "development", "test":
		return &Logger{slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	default:
		return &Logger{slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
	}
}

// Discard drops everything. Used by tests.
func Discard() *Logger {
	return NewWithWriter("test", io.Discard)
}

// With returns a child logger carrying attrs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

func (l *Logger) HTTPRequest(requestID, method, path string, status int, latency time.Duration, clientIP string) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	l.LogAttrs(context.Background(), level, "http_request",
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Int64("latency_ms", latency.Milliseconds()),
		slog.String("client_ip", clientIP),
	)
}

// SweepFinished logs the aggregate outcome of one sweep run.
func (l *Logger) SweepFinished(sweep string, processed, succeeded, failed, skipped int, latencyMs float64) {
	l.Info("sweep_finished",
		slog.String("sweep", sweep),
		slog.Int("processed", processed),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
		slog.Float64("latency_ms", latencyMs),
	)
}

// DispatchFailed logs a gateway failure for one lead. The step stays due.
func (l *Logger) DispatchFailed(leadID string, step int, err error) {
	l.Warn("dispatch_failed",
		slog.String("lead_id", leadID),
		slog.Int("step", step),
		slog.String("error", err.Error()),
	)
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
