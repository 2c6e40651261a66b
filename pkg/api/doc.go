// Package api provides the HTTP API for the folio search service.
//
// # Overview
//
// The API is built on gorilla/mux. Every response uses the envelope from
// pkg/httputil:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": {"code": "...", "message": "...", "details": [...]}}
//
// # Routes
//
//	POST /api/v1/search            structured search (any search scope)
//	GET  /api/v1/search/analytics  search analytics report (analytics:read)
//	GET  /health, /health/live, /health/ready
//	GET  /metrics
//
// Routes under /api/v1 require a Bearer API key. Requests are rate limited
// per organization when a RateLimitMiddleware is configured.
//
// # Error Mapping
//
// Engine error codes map to HTTP status codes:
//
//   - VALIDATION_ERROR, INVALID_PROPERTY, OPERATOR_TYPE_MISMATCH,
//     TOO_MANY_FILTERS, INVALID_CURSOR: 400
//   - FORBIDDEN: 403
//   - STORAGE_ERROR: 500
//
// The request deadline produces 504 TIMEOUT.
//
// # Usage Example
//
//	server := api.NewServer(engine, middleware.NewAuthMiddleware(tokens, audit, false),
//		api.Config{RequestTimeout: 10 * time.Second, MaxBodyBytes: 1 << 20},
//		api.WithAnalytics(analytics.NewService(db, dialect)),
//		api.WithHealth(observability.NewHealthChecker(version, db, nil)),
//	)
//	http.ListenAndServe(":8080", server)
package api
