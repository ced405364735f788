package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const ScopeName = "furnidesk.orders"

// Metrics are the counters operators watch on the reconciliation engine.
type Metrics struct {
	itemsDropped      metric.Int64Counter
	deletesRetained   metric.Int64Counter
	deliveriesCreated metric.Int64Counter
	reconciliations   metric.Int64Counter
	duration          metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(ScopeName)
	}

	m := &Metrics{}
	var err error
	m.itemsDropped, err = meter.Int64Counter("orders.items.dropped",
		metric.WithDescription("Incoming line items skipped because their product identity could not be resolved"))
	if err != nil {
		return nil, err
	}
	m.deletesRetained, err = meter.Int64Counter("orders.items.delete_retained",
		metric.WithDescription("Line item deletes refused because downstream records reference the row"))
	if err != nil {
		return nil, err
	}
	m.deliveriesCreated, err = meter.Int64Counter("orders.deliveries.created",
		metric.WithDescription("Deliveries created by order status changes"))
	if err != nil {
		return nil, err
	}
	m.reconciliations, err = meter.Int64Counter("orders.reconciliations",
		metric.WithDescription("Order update reconciliations by outcome"))
	if err != nil {
		return nil, err
	}
	m.duration, err = meter.Float64Histogram("orders.reconciliation.duration",
		metric.WithDescription("Order update reconciliation duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) ItemsDropped(ctx context.Context, n int, operation string) {
	if m == nil || n <= 0 {
		return
	}
	m.itemsDropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *Metrics) DeletesRetained(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deletesRetained.Add(ctx, int64(n))
}

func (m *Metrics) DeliveryCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.deliveriesCreated.Add(ctx, 1)
}

func (m *Metrics) Reconciled(ctx context.Context, outcome string, elapsedMS float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.reconciliations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsedMS, attrs)
}

// NewMeterProvider returns an SDK meter provider whose readings are pulled
// on demand through the returned reader.
func NewMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

// Snapshot collects reader and flattens integer sums to name -> value,
// summing across attribute sets.
func Snapshot(ctx context.Context, reader sdkmetric.Reader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	out := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			out[m.Name] = total
		}
	}
	return out, nil
}
