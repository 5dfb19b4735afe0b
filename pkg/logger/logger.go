// Package logger provides the process-wide structured logger built on log/slog.
//
// WithCtx returns the request-scoped logger injected by middleware.Logger, so
// every line written while serving a request carries its request_id:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order created", "order_id", order.ID)
//	// → time=... level=INFO msg="order created" request_id=a1b2c3d4 order_id=7
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/freshbulk/storefront/config"
)

var L *slog.Logger

func init() {
	Setup(os.Stdout, config.IsProduction(), config.LogLevel())
}

// Setup replaces the base logger. JSON output is used in production, text
// everywhere else.
func Setup(w io.Writer, jsonOutput bool, level string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	L = slog.New(handler)
	slog.SetDefault(L)
}

// ParseLevel maps debug/info/warn/error to a slog.Level. Unknown values
// resolve to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

type ctxKey struct{}

// WithCtx returns the logger stored in ctx, or the base logger.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx. Called by middleware.Logger.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }

// LevelFor picks the access-log level for an HTTP status.
func LevelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
