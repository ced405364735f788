package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

func TestMetricsSnapshot(t *testing.T) {
	provider, reader := NewMeterProvider()
	metrics, err := NewMetrics(provider.Meter(ScopeName))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.ItemsDropped(ctx, 2, "update")
	metrics.ItemsDropped(ctx, 1, "create")
	metrics.ItemsDropped(ctx, 0, "update")
	metrics.DeletesRetained(ctx, 1)
	metrics.DeliveryCreated(ctx)
	metrics.Reconciled(ctx, "ok", 12.5)

	snap, err := Snapshot(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap["orders.items.dropped"])
	assert.Equal(t, int64(1), snap["orders.items.delete_retained"])
	assert.Equal(t, int64(1), snap["orders.deliveries.created"])
	assert.Equal(t, int64(1), snap["orders.reconciliations"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ItemsDropped(context.Background(), 1, "update")
	m.DeliveryCreated(context.Background())
}

func TestNewLoggerFallsBackOnUnknownLevel(t *testing.T) {
	logger, err := NewLogger("loud")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	debug, err := NewLogger("DEBUG")
	require.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))
}

func TestNewTracerProviderInstallsGlobalProvider(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	recorder := tracetest.NewSpanRecorder()
	ctx := context.Background()
	provider, err := NewTracerProvider(ctx, TracingConfig{SampleRate: 1}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := otel.Tracer(ScopeName).Start(ctx, "orders.test")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "orders.test", spans[0].Name())
	assert.Equal(t, ScopeName, spans[0].InstrumentationScope().Name)
	found := false
	for _, kv := range spans[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			found = true
			assert.Equal(t, "furnidesk-orders", kv.Value.AsString())
		}
	}
	assert.True(t, found)
}

func TestNewTracerProviderNeverSamplesAtZeroRate(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	recorder := tracetest.NewSpanRecorder()
	provider, err := NewTracerProvider(context.Background(), TracingConfig{SampleRate: 0}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := provider.Tracer(ScopeName).Start(context.Background(), "orders.test")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
	assert.Empty(t, recorder.Ended())
}
