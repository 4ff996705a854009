package types

import (
	"context"
)

type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
)

// GetRequestID returns the request id from the context, empty when unset
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxRequestID).(string); ok {
		return id
	}
	return ""
}

// SetRequestID returns a child context carrying the request id
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}
