package common

import (
	"context"
	"encoding/json"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	requestBodyKey
)

// WithCorrelationID stores the request correlation ID in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID, or "" if absent.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithRequestBody stores the already-parsed JSON request body in ctx.
func WithRequestBody(ctx context.Context, body json.RawMessage) context.Context {
	return context.WithValue(ctx, requestBodyKey, body)
}

// RequestBodyFromContext returns the parsed body and whether one was stored.
func RequestBodyFromContext(ctx context.Context) (json.RawMessage, bool) {
	body, ok := ctx.Value(requestBodyKey).(json.RawMessage)
	return body, ok
}
