package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RegistryMetricsMeterName is the name used for the registry metrics meter
	RegistryMetricsMeterName = "github.com/stacklok/device-registry-server/registry"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/device-registry-server/sync"

	// LookupMetricsMeterName is the name used for the lookup metrics meter
	LookupMetricsMeterName = "github.com/stacklok/device-registry-server/lookup"
)

// RegistryMetrics holds the OpenTelemetry instruments for registry metrics
type RegistryMetrics struct {
	recordsTotal metric.Int64Gauge
}

// NewRegistryMetrics creates a new RegistryMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRegistryMetrics(provider metric.MeterProvider) (*RegistryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RegistryMetricsMeterName)

	recordsTotal, err := meter.Int64Gauge(
		"devreg_records_total",
		metric.WithDescription("Number of device records loaded for each registry"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &RegistryMetrics{
		recordsTotal: recordsTotal,
	}, nil
}

// RecordRecordsTotal records the current number of records in a registry
func (m *RegistryMetrics) RecordRecordsTotal(ctx context.Context, registryName string, count int64) {
	if m == nil || m.recordsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("registry", registryName),
	}

	m.recordsTotal.Record(ctx, count, metric.WithAttributes(attrs...))
}

// SyncMetrics holds the OpenTelemetry instruments for snapshot refresh metrics
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"devreg_sync_duration_seconds",
		metric.WithDescription("Duration of snapshot refreshes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
	}, nil
}

// RecordSyncDuration records the duration of a refresh of the given source
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, source string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", source),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// LookupMetrics holds the OpenTelemetry instruments for device lookups
type LookupMetrics struct {
	lookupsTotal   metric.Int64Counter
	resultCount    metric.Int64Histogram
	reconcileTotal metric.Int64Counter
}

// NewLookupMetrics creates a new LookupMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewLookupMetrics(provider metric.MeterProvider) (*LookupMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(LookupMetricsMeterName)

	lookupsTotal, err := meter.Int64Counter(
		"devreg_lookups_total",
		metric.WithDescription("Total number of device lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	resultCount, err := meter.Int64Histogram(
		"devreg_lookup_results",
		metric.WithDescription("Number of records returned by a lookup"),
		metric.WithUnit("{record}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100, 500),
	)
	if err != nil {
		return nil, err
	}

	reconcileTotal, err := meter.Int64Counter(
		"devreg_reconciled_records_total",
		metric.WithDescription("Records produced by combined lookups, by reconciliation outcome"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &LookupMetrics{
		lookupsTotal:   lookupsTotal,
		resultCount:    resultCount,
		reconcileTotal: reconcileTotal,
	}, nil
}

// RecordLookup records a completed lookup and the number of records it returned
func (m *LookupMetrics) RecordLookup(ctx context.Context, operation string, results int, success bool) {
	if m == nil || m.lookupsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	m.lookupsTotal.Add(ctx, 1, attrs)
	if success {
		m.resultCount.Record(ctx, int64(results), metric.WithAttributes(attribute.String("operation", operation)))
	}
}

// RecordReconcile records how many records of a combined lookup were merged
// pairs and how many were carried through unmatched
func (m *LookupMetrics) RecordReconcile(ctx context.Context, matched, unmatchedA, unmatchedB int) {
	if m == nil || m.reconcileTotal == nil {
		return
	}

	for outcome, n := range map[string]int{
		"matched":     matched,
		"unmatched_a": unmatchedA,
		"unmatched_b": unmatchedB,
	} {
		if n > 0 {
			m.reconcileTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
		}
	}
}
