package obs

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "req_id"
	RunIDKey     ctxKey = "run_id"
)

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, reqID)
}

// Time logs the duration of an operation when the returned func is called.
// Typical use: defer obs.Time(ctx, "op")(&err).
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	runID, _ := ctx.Value(RunIDKey).(string)
	reqID, _ := ctx.Value(RequestIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		attrs := []any{"op", name, "dur_ms", dur.Milliseconds()}
		if runID != "" {
			attrs = append(attrs, "run_id", runID)
		}
		if reqID != "" {
			attrs = append(attrs, "req_id", reqID)
		}

		if errp != nil && *errp != nil {
			slog.WarnContext(ctx, "op failed", append(attrs, "err", *errp)...)
			return
		}
		slog.DebugContext(ctx, "op done", attrs...)
	}
}
