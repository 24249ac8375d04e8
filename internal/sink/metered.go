package sink

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/tplscope/internal/engine"
)

const meterName = "github.com/roach88/tplscope/internal/sink"

// Metered records delivery metrics around another sink.
//
// Metrics:
//   - tplscope.batches: batches delivered, by status (ok, error)
//   - tplscope.records: records delivered successfully
//   - tplscope.records.dropped: records lost to buffer overflow
//   - tplscope.records.duplicates: records suppressed by deduplication
//   - tplscope.evaluations.untracked: evaluations lost to stack overflow
//   - tplscope.delivery.duration: wrapped sink latency in seconds
type Metered struct {
	next engine.Sink
	name attribute.KeyValue

	batches    metric.Int64Counter
	records    metric.Int64Counter
	dropped    metric.Int64Counter
	duplicates metric.Int64Counter
	untracked  metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMetered wraps next. A nil provider uses the global meter provider.
// name labels every measurement with sink=name.
func NewMetered(next engine.Sink, name string, provider metric.MeterProvider) (*Metered, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	m := &Metered{next: next, name: attribute.String("sink", name)}

	var err error
	if m.batches, err = meter.Int64Counter("tplscope.batches",
		metric.WithDescription("Batches handed to the sink")); err != nil {
		return nil, fmt.Errorf("metered sink: %w", err)
	}
	if m.records, err = meter.Int64Counter("tplscope.records",
		metric.WithDescription("Records delivered successfully")); err != nil {
		return nil, fmt.Errorf("metered sink: %w", err)
	}
	if m.dropped, err = meter.Int64Counter("tplscope.records.dropped",
		metric.WithDescription("Records lost because the log buffer was full")); err != nil {
		return nil, fmt.Errorf("metered sink: %w", err)
	}
	if m.duplicates, err = meter.Int64Counter("tplscope.records.duplicates",
		metric.WithDescription("Records suppressed by the filter group")); err != nil {
		return nil, fmt.Errorf("metered sink: %w", err)
	}
	if m.untracked, err = meter.Int64Counter("tplscope.evaluations.untracked",
		metric.WithDescription("Evaluations not tracked because the stack was full")); err != nil {
		return nil, fmt.Errorf("metered sink: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("tplscope.delivery.duration",
		metric.WithDescription("Latency of the wrapped sink"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("metered sink: %w", err)
	}
	return m, nil
}

// Deliver implements engine.Sink.
func (m *Metered) Deliver(ctx context.Context, b *engine.Batch) error {
	start := time.Now()
	err := m.next.Deliver(ctx, b)
	elapsed := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(m.name)

	m.batches.Add(ctx, 1, metric.WithAttributes(m.name, attribute.String("status", status)))
	m.duration.Record(ctx, elapsed, metric.WithAttributes(m.name, attribute.String("status", status)))
	if err == nil {
		m.records.Add(ctx, int64(len(b.Records)), attrs)
	}
	m.dropped.Add(ctx, int64(b.Stats.Dropped), attrs)
	m.duplicates.Add(ctx, int64(b.Stats.Duplicates), attrs)
	m.untracked.Add(ctx, int64(b.Stats.Untracked), attrs)
	return err
}
