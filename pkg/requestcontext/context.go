// Package requestcontext carries per-request metadata (request id, request
// time) through context so services stay free of transport concerns.
package requestcontext

import (
	"context"
	"time"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	requestTimeKey
)

// WithRequestID attaches a request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id, or empty string when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithNow pins the request time so all timestamps within one request agree.
func WithNow(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, now)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}
