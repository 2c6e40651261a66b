package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelSearchMetrics holds OpenTelemetry instruments for search requests.
// They are exported through the meter provider set up by InitOTel.
type OTelSearchMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTelSearchMetrics creates the instruments on the global meter provider
func NewOTelSearchMetrics() (*OTelSearchMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/folio")

	requests, err := meter.Int64Counter(
		"search.requests",
		metric.WithDescription("Total number of search requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search.requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search.duration histogram: %w", err)
	}

	return &OTelSearchMetrics{requests: requests, duration: duration}, nil
}

func (m *OTelSearchMetrics) record(entityType, status string, d time.Duration) {
	ctx := context.Background()
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity_type", entityType),
		attribute.String("status", status),
	))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("entity_type", entityType)))
}
