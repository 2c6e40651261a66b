// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here so that
// their producers and consumers are discoverable in one place.
//
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext.
	// Set by middleware.AuthMiddleware, required by the search endpoint.
	AuthKey Key = "auth_context"

	// RequestIDKey contains the request id string.
	// Set by httputil.RequestIDMiddleware, used by the logger.
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger.
	// Set by httputil.RequestIDMiddleware, enriched by middleware.AuthMiddleware.
	LoggerKey Key = "logger"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
