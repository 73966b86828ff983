// Package otel holds the span helpers and attribute keys shared by the lookup
// service and the registry stores.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on lookup and store spans
const (
	AttrRegistryName    = attribute.Key("registry.name")
	AttrStoreType       = attribute.Key("store.type")
	AttrDeviceName      = attribute.Key("device.name")
	AttrResultCount     = attribute.Key("result.count")
	AttrMatchedCount    = attribute.Key("reconcile.matched")
	AttrSnapshotVersion = attribute.Key("snapshot.version")
)

// StartSpan starts a span on tracer. A nil tracer yields the span already in
// ctx, which is a no-op span when ctx carries none.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError attaches err to span as an event and marks the span failed.
// The status text stays generic so queries and connection strings never
// reach it; the event keeps the detail.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "operation failed")
}
