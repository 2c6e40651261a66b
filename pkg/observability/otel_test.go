package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NewLogger(InfoLevel, &bytes.Buffer{}))
	assert.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, providers.Shutdown(context.Background()), "nil providers shut down cleanly")
}

func TestInitOTel_Enabled(t *testing.T) {
	prevTracer, prevMeter := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	})

	// exporters connect lazily, so no collector is needed
	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		ServiceName:    "folio-test",
		ServiceVersion: "1.0.0",
		Insecure:       true,
	}, NewLogger(InfoLevel, &bytes.Buffer{}))
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.Same(t, providers.TracerProvider, otel.GetTracerProvider())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = providers.Shutdown(ctx)
}

func TestUpdateLoggerWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	assert.Same(t, logger, UpdateLoggerWithTraceContext(context.Background(), logger), "no span leaves the logger as is")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "search")
	defer span.End()

	FromContext(WithLogger(ctx, logger)).Info("inside span")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestOTelSearchMetrics_Record(t *testing.T) {
	prev := otel.GetMeterProvider()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	o, err := NewOTelSearchMetrics()
	require.NoError(t, err)
	o.record("posts", "ok", 20*time.Millisecond)
	o.record("posts", "ok", 10*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if m.Name == "search.requests" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(2), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found["search.requests"])
	assert.True(t, found["search.duration"])
}
