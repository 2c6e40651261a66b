// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Envelope
//
// Every response is wrapped in a common envelope:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": {"code": "...", "message": "...", "details": [...]}}
//
// Response helpers:
//
//	httputil.WriteSuccess(w, result)
//	httputil.WriteBadRequest(w, "invalid JSON")
//	httputil.WriteUnauthorized(w, "missing authorization header")
//	httputil.WriteError(w, http.StatusForbidden, "FORBIDDEN", msg, details...)
//
// # Request Parsing
//
//	var req search.RawRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.TimeoutMiddleware(30*time.Second),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: API key authentication
package httputil
