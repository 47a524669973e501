package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/higgsflow/catalog-sync/internal/platform/observability"

// SyncMetrics records pipeline counters through OpenTelemetry. All methods are
// safe on a nil receiver so callers can skip wiring metrics in tests.
type SyncMetrics struct {
	operations metric.Int64Counter
	retries    metric.Int64Counter
	queueDepth metric.Int64UpDownCounter
}

// NewSyncMetrics registers the pipeline instruments on the global meter provider.
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	operations, err := meter.Int64Counter("catalog_sync.operations",
		metric.WithDescription("Terminal sync operations by type and outcome"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("catalog_sync.retries",
		metric.WithDescription("Sync operations re-queued after a transient failure"))
	if err != nil {
		return nil, err
	}
	queueDepth, err := meter.Int64UpDownCounter("catalog_sync.queue_depth",
		metric.WithDescription("Items currently waiting in a pipeline queue"))
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{operations: operations, retries: retries, queueDepth: queueDepth}, nil
}

// RecordOperation counts one terminal sync outcome.
func (m *SyncMetrics) RecordOperation(ctx context.Context, syncType, status string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sync_type", syncType),
		attribute.String("status", status),
	))
}

// RecordRetry counts one re-queued operation.
func (m *SyncMetrics) RecordRetry(ctx context.Context, syncType string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("sync_type", syncType)))
}

// QueueDelta adjusts the depth gauge for the named queue.
func (m *SyncMetrics) QueueDelta(ctx context.Context, queue string, delta int64) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Add(ctx, delta, metric.WithAttributes(attribute.String("queue", queue)))
}
