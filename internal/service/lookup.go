package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/device-registry-server/internal/otel"
	"github.com/stacklok/device-registry-server/internal/reconcile"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/telemetry"
)

const (
	// ServiceTracerName is the name used for the lookup service tracer
	ServiceTracerName = "github.com/stacklok/device-registry-server/service"

	// Operation names used in spans and metrics
	OperationRegistryA = "fda"
	OperationRegistryB = "eudamed"
	OperationCombined  = "combined"
)

// deviceSvc implements DeviceService on top of a RegistryStore
type deviceSvc struct {
	store      RegistryStore
	reconciler *reconcile.Reconciler
	tracer     trace.Tracer
	metrics    *telemetry.LookupMetrics
}

var _ DeviceService = (*deviceSvc)(nil)

// Option is a functional option for configuring the device service
type Option func(*deviceSvc)

// WithTracer sets the tracer used to create lookup spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *deviceSvc) {
		s.tracer = tracer
	}
}

// WithLookupMetrics sets the instruments recording lookup counts and
// reconciliation outcomes
func WithLookupMetrics(m *telemetry.LookupMetrics) Option {
	return func(s *deviceSvc) {
		s.metrics = m
	}
}

// WithKeyFunc sets the manufacturer key function used by combined lookups
func WithKeyFunc(fn reconcile.KeyFunc) Option {
	return func(s *deviceSvc) {
		s.reconciler = reconcile.New(reconcile.WithKeyFunc(fn))
	}
}

// New creates a DeviceService reading from the given store
func New(store RegistryStore, opts ...Option) (DeviceService, error) {
	if store == nil {
		return nil, fmt.Errorf("registry store is required")
	}

	s := &deviceSvc{
		store:      store,
		reconciler: reconcile.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckReadiness implements DeviceService.CheckReadiness
func (s *deviceSvc) CheckReadiness(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}

// LookupRegistryA implements DeviceService.LookupRegistryA
func (s *deviceSvc) LookupRegistryA(ctx context.Context, deviceName string) ([]registry.Record, error) {
	return s.lookupOne(ctx, registry.FDA, OperationRegistryA, deviceName)
}

// LookupRegistryB implements DeviceService.LookupRegistryB
func (s *deviceSvc) LookupRegistryB(ctx context.Context, deviceName string) ([]registry.Record, error) {
	return s.lookupOne(ctx, registry.EUDAMED, OperationRegistryB, deviceName)
}

func (s *deviceSvc) lookupOne(
	ctx context.Context,
	id registry.ID,
	operation string,
	deviceName string,
) ([]registry.Record, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "deviceSvc.Lookup",
		trace.WithAttributes(
			otel.AttrRegistryName.String(string(id)),
			otel.AttrDeviceName.String(deviceName),
		),
	)
	defer span.End()

	if strings.TrimSpace(deviceName) == "" {
		span.SetAttributes(otel.AttrResultCount.Int(0))
		return []registry.Record{}, nil
	}

	records, err := s.query(ctx, id, deviceName)
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordLookup(ctx, operation, 0, false)
		return nil, err
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(records)))
	s.metrics.RecordLookup(ctx, operation, len(records), true)
	return records, nil
}

// LookupCombined implements DeviceService.LookupCombined
func (s *deviceSvc) LookupCombined(ctx context.Context, deviceName string) ([]registry.Record, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "deviceSvc.LookupCombined",
		trace.WithAttributes(otel.AttrDeviceName.String(deviceName)),
	)
	defer span.End()

	if strings.TrimSpace(deviceName) == "" {
		span.SetAttributes(otel.AttrResultCount.Int(0))
		return []registry.Record{}, nil
	}

	var sideA, sideB []registry.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sideA, err = s.query(gctx, registry.FDA, deviceName)
		return err
	})
	g.Go(func() error {
		var err error
		sideB, err = s.query(gctx, registry.EUDAMED, deviceName)
		return err
	})
	if err := g.Wait(); err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordLookup(ctx, OperationCombined, 0, false)
		return nil, err
	}

	res := s.reconciler.Combine(sideA, sideB)

	span.SetAttributes(
		otel.AttrResultCount.Int(len(res.Records)),
		otel.AttrMatchedCount.Int(res.Matched),
	)
	s.metrics.RecordLookup(ctx, OperationCombined, len(res.Records), true)
	s.metrics.RecordReconcile(ctx, res.Matched, res.UnmatchedA, res.UnmatchedB)

	slog.DebugContext(ctx, "Combined lookup reconciled",
		"device_name", deviceName,
		"fda_records", len(sideA),
		"eudamed_records", len(sideB),
		"matched", res.Matched)

	return res.Records, nil
}

// Info implements DeviceService.Info
func (s *deviceSvc) Info(ctx context.Context) (*StoreInfo, error) {
	info, err := s.store.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to describe store: %w", ErrRetrieval, err)
	}
	return info, nil
}

// query reads one registry from the store, wrapping failures in ErrRetrieval
// and normalizing a nil result to an empty slice
func (s *deviceSvc) query(ctx context.Context, id registry.ID, deviceName string) ([]registry.Record, error) {
	records, err := s.store.Query(ctx, id, deviceName)
	if err != nil {
		slog.ErrorContext(ctx, "Registry store query failed",
			"registry", id,
			"error", err)
		return nil, fmt.Errorf("%w: failed to query %s: %w", ErrRetrieval, id, err)
	}
	if records == nil {
		records = []registry.Record{}
	}
	return records, nil
}
