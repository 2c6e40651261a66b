// Package middleware provides HTTP middleware for API key authentication,
// scope checks and rate limiting.
//
// AuthMiddleware validates the Bearer API key and stores an auth.AuthContext
// carrying the organization id and scopes in the request context:
//
//	authMW := middleware.NewAuthMiddleware(tokenManager, auditLogger, false)
//	router.Use(authMW.Handler)
//
// RequireScope rejects authenticated callers lacking a scope:
//
//	router.Handle("/api/v1/search/posts/properties", middleware.RequireScope(auth.ScopePostsSearch)(h))
//
// RateLimitMiddleware limits requests per organization with an in-process
// token bucket (RateLimiter) or a Redis fixed window shared by all instances
// (DistributedRateLimiter).
package middleware
