package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP level Prometheus metrics
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
}

// NewMetrics creates and registers the HTTP metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "route"},
		),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "folio_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "folio_db_connections_in_use",
			Help: "Number of database connections in use",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
	)
	return m
}

// RecordDBStats publishes connection pool statistics
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
}

// SearchMetrics holds the search engine metrics
type SearchMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	Duration           *prometheus.HistogramVec
	Results            *prometheus.HistogramVec
	ExcludedTypesTotal *prometheus.CounterVec
	SchemaCacheHits    *prometheus.CounterVec
	SchemaCacheMisses  prometheus.Counter

	otel *OTelSearchMetrics
}

// NewSearchMetrics creates and registers the search metrics
func NewSearchMetrics(registry prometheus.Registerer) *SearchMetrics {
	m := &SearchMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_search_requests_total",
				Help: "Total number of search requests by outcome code",
			},
			[]string{"entity_type", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_search_duration_seconds",
				Help:    "Search duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"entity_type"},
		),
		Results: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_search_results",
				Help:    "Number of records returned per search page",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
			[]string{"entity_type"},
		),
		ExcludedTypesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_search_excluded_types_total",
				Help: "Entity types excluded from fan-out searches",
			},
			[]string{"entity_type"},
		),
		SchemaCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_schema_cache_hits_total",
				Help: "Tenant schema cache hits by layer",
			},
			[]string{"layer"},
		),
		SchemaCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "folio_schema_cache_misses_total",
			Help: "Tenant schema loads that reached the database",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.Duration,
		m.Results,
		m.ExcludedTypesTotal,
		m.SchemaCacheHits,
		m.SchemaCacheMisses,
	)
	return m
}

// WithOTel mirrors search observations onto OpenTelemetry instruments
func (m *SearchMetrics) WithOTel(o *OTelSearchMetrics) *SearchMetrics {
	m.otel = o
	return m
}

// ObserveSearch records one completed search
func (m *SearchMetrics) ObserveSearch(entityType, status string, d time.Duration, results int) {
	m.RequestsTotal.WithLabelValues(entityType, status).Inc()
	m.Duration.WithLabelValues(entityType).Observe(d.Seconds())
	if status == "ok" {
		m.Results.WithLabelValues(entityType).Observe(float64(results))
	}
	if m.otel != nil {
		m.otel.record(entityType, status, d)
	}
}

// IncExcluded counts an entity type dropped from a fan-out search
func (m *SearchMetrics) IncExcluded(entityType string) {
	m.ExcludedTypesTotal.WithLabelValues(entityType).Inc()
}

// SchemaCacheHit counts a schema served from a cache layer
func (m *SearchMetrics) SchemaCacheHit(layer string) {
	m.SchemaCacheHits.WithLabelValues(layer).Inc()
}

// SchemaCacheMiss counts a schema loaded from the database
func (m *SearchMetrics) SchemaCacheMiss() {
	m.SchemaCacheMisses.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests. Requests are labelled by
// route template so path parameters do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tmpl, err := cur.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
