package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/folio/pkg/analytics"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/search"
)

// Searcher runs a structured search for an authenticated caller.
// *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, caller search.Caller, raw search.RawRequest) (*search.Result, error)
}

// Reporter builds search analytics for one organization.
// *analytics.Service implements it.
type Reporter interface {
	GetReport(ctx context.Context, organizationID string, since time.Time, limit int) (*analytics.Report, error)
}

// Config holds HTTP surface settings
type Config struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Tracing        bool
}

// Server is the folio HTTP API
type Server struct {
	router    *mux.Router
	handler   http.Handler
	engine    Searcher
	authn     *middleware.AuthMiddleware
	reporter  Reporter
	rateLimit *middleware.RateLimitMiddleware
	health    *observability.HealthChecker
	metrics   *observability.Metrics
	gatherer  prometheus.Gatherer
	logger    *observability.Logger
	config    Config
	now       func() time.Time
}

// Option configures optional Server collaborators
type Option func(*Server)

// WithAnalytics serves GET /api/v1/search/analytics from r
func WithAnalytics(r Reporter) Option {
	return func(s *Server) { s.reporter = r }
}

// WithRateLimit charges every /api/v1 request to m
func WithRateLimit(m *middleware.RateLimitMiddleware) Option {
	return func(s *Server) { s.rateLimit = m }
}

// WithHealth registers the health endpoints
func WithHealth(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics instruments routes with m and serves g on /metrics
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the base logger for request-scoped loggers
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer builds the router. engine and authn are required.
func NewServer(engine Searcher, authn *middleware.AuthMiddleware, cfg Config, opts ...Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		engine: engine,
		authn:  authn,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s.setupRoutes()

	// mux middleware only runs for matched routes, so request ids, logging
	// and recovery wrap the router itself
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
	)(s.router)
	if cfg.Tracing {
		s.handler = otelhttp.NewHandler(s.handler, "folio.http")
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMethodNotAllowed(w)
	})

	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	if s.health != nil {
		s.health.RegisterRoutes(s.router)
	}
	if s.gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.gatherer)).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authn.Handler)
	if s.rateLimit != nil {
		api.Use(s.rateLimit.Handler)
	}
	api.Use(
		httputil.TimeoutMiddleware(s.config.RequestTimeout),
		httputil.MaxBytesMiddleware(s.config.MaxBodyBytes),
	)

	api.Handle("/search", httputil.ContentTypeMiddleware(http.HandlerFunc(s.handleSearch))).
		Methods(http.MethodPost)
	if s.reporter != nil {
		api.Handle("/search/analytics", middleware.RequireScope(auth.ScopeAnalyticsRead)(http.HandlerFunc(s.handleAnalytics))).
			Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
