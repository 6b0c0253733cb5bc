package obs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "req_id"
	loggerKey    ctxKey = "logger"
)

// WithLogger attaches a logger to the context for downstream operations.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Logger returns the context logger, or the global zap logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

// Time logs the duration of an operation when the returned func is deferred with the
// operation's named error.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)
	logger := Logger(ctx)

	return func(errp *error) {
		dur := time.Since(start)
		fields := []zap.Field{
			zap.String("req_id", reqID),
			zap.String("op", name),
			zap.Int64("dur_ms", dur.Milliseconds()),
		}

		if errp != nil && *errp != nil {
			logger.Warn("operation failed", append(fields, zap.Error(*errp))...)
			return
		}
		logger.Debug("operation done", fields...)
	}
}
