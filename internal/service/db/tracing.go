package database

import (
	"context"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/device-registry-server/internal/otel"
)

const (
	// ServiceTracerName is the name used for the database store tracer
	ServiceTracerName = "github.com/stacklok/device-registry-server/service/db"

	storeType = "postgres"
)

// startSpan opens a store span tagged with db.system and store.type
func (s *Store) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append([]trace.SpanStartOption{trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		otel.AttrStoreType.String(storeType),
	)}, opts...)
	return otel.StartSpan(ctx, s.tracer, name, opts...)
}
