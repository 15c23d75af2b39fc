package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID returns a context carrying the given correlation
// ID. Every log call made with that context tags its entry with it, so
// one HTTP request or one collection run can be traced end to end.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// GetCorrelationID returns the correlation ID carried by ctx, or an
// empty string when there is none.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// GenerateCorrelationID mints a fresh UUID correlation ID.
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// MustGetCorrelationID returns the context's correlation ID, minting a
// fresh one when the context carries none.
func MustGetCorrelationID(ctx context.Context) string {
	if id := GetCorrelationID(ctx); id != "" {
		return id
	}
	return GenerateCorrelationID()
}
