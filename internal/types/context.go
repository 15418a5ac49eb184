package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

// HeaderRequestID echoes the request id back to the caller.
const HeaderRequestID = "X-Request-ID"

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxAppID     ContextKey = "ctx_app_id"
	CtxAppUserID ContextKey = "ctx_app_user_id"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetAppID(ctx context.Context) string {
	if appID, ok := ctx.Value(CtxAppID).(string); ok {
		return appID
	}
	return ""
}

func GetAppUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxAppUserID).(string); ok {
		return userID
	}
	return ""
}

// SetRequestID sets the request ID in the context
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// SetAppID sets the application ID in the context
func SetAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, CtxAppID, appID)
}

// SetAppUserID sets the per-application user ID in the context
func SetAppUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxAppUserID, userID)
}
