package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	correlationIDCtxKey contextKey = iota
	requestIDCtxKey
	userIDCtxKey
)

// Attribute keys used in logs.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	UserIDKey        = "user_id"
)

// WithCorrelationID stores id on ctx, generating one when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDCtxKey).(string)
	return id
}

// CorrelationUUID parses the correlation id on ctx, or returns uuid.Nil.
func CorrelationUUID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(CorrelationIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// WithRequestID stores id on ctx, generating one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

// WithUserID stores the acting user on ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, id)
}

// UserIDFromContext returns the acting user or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDCtxKey).(string)
	return id
}
