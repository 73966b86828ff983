package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newSpanRecorder(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

// tracedRouter serves the lookup, probe and scrape routes behind mw
func tracedRouter(mw func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mw)
	r.Get("/v1/devices/{registry}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "registry") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/get_device_info/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, path := range []string{"/health", "/readiness", "/metrics"} {
		r.Get(path, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}
	return r
}

func spanAttrs(span tracetest.SpanStub) map[string]string {
	attrs := map[string]string{}
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}

func TestTracingMiddleware_NilProvider(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	tracedRouter(TracingMiddleware(nil)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/devices/fda?device_name=x", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTracingMiddleware_Spans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		path         string
		wantSpan     bool
		wantName     string
		wantRegistry string
		wantStatus   string
		wantCode     codes.Code
	}{
		{
			name:         "registry lookup",
			path:         "/v1/devices/eudamed?device_name=CardioPump",
			wantSpan:     true,
			wantName:     "GET /v1/devices/{registry}",
			wantRegistry: "eudamed",
			wantStatus:   "200",
			wantCode:     codes.Ok,
		},
		{
			name:         "failed lookup",
			path:         "/v1/devices/broken?device_name=CardioPump",
			wantSpan:     true,
			wantName:     "GET /v1/devices/{registry}",
			wantRegistry: "broken",
			wantStatus:   "500",
			wantCode:     codes.Error,
		},
		{
			name:       "legacy URL has no registry attribute",
			path:       "/get_device_info/?device_name=CardioPump",
			wantSpan:   true,
			wantName:   "GET /get_device_info/",
			wantStatus: "200",
			wantCode:   codes.Ok,
		},
		{
			name:       "unknown path",
			path:       "/nope",
			wantSpan:   true,
			wantName:   "GET unknown_route",
			wantStatus: "404",
			wantCode:   codes.Error,
		},
		{name: "health is not traced", path: "/health"},
		{name: "readiness is not traced", path: "/readiness"},
		{name: "metrics is not traced", path: "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			exporter, tp := newSpanRecorder(t)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("User-Agent", "devreg-test/1.0")
			tracedRouter(TracingMiddleware(tp)).ServeHTTP(httptest.NewRecorder(), req)

			spans := exporter.GetSpans()
			if !tt.wantSpan {
				assert.Empty(t, spans)
				return
			}
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, tt.wantName, span.Name)
			assert.Equal(t, tt.wantCode, span.Status.Code)

			attrs := spanAttrs(span)
			assert.Equal(t, tt.wantStatus, attrs["http.response.status_code"])
			assert.Equal(t, http.MethodGet, attrs["http.request.method"])
			assert.Equal(t, "devreg-test/1.0", attrs["user_agent.original"])
			if tt.wantRegistry != "" {
				assert.Equal(t, tt.wantRegistry, attrs["registry.name"])
			} else {
				assert.NotContains(t, attrs, "registry.name")
			}
		})
	}
}

func TestTracingMiddleware_ContinuesIncomingTrace(t *testing.T) {
	t.Parallel()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	exporter, tp := newSpanRecorder(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/v1/devices/fda?device_name=x", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	tracedRouter(TracingMiddleware(tp)).ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, traceID, spans[0].SpanContext.TraceID().String())
	assert.True(t, spans[0].Parent.IsRemote())
}

func TestTruncateUserAgent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "curl/8.0", truncateUserAgent("curl/8.0"))
	long := strings.Repeat("a", MaxUserAgentLength+10)
	assert.Len(t, truncateUserAgent(long), MaxUserAgentLength)
}
