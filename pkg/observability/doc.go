// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry setup.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("organization_id", orgID).Info("search completed")
//
// Request handlers obtain the request-scoped logger with FromContext.
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	httpMetrics := observability.NewMetrics(registry)
//	searchMetrics := observability.NewSearchMetrics(registry)
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Tracing
//
// InitOTel installs OTLP gRPC tracer and meter providers; when disabled the
// global no-op providers stay in place and instrumented code is unaffected.
package observability
