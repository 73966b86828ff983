// Package telemetry provides OpenTelemetry instrumentation for the device registry server.
// It supports configurable tracing and metrics with OTLP exporters and a
// Prometheus scrape endpoint.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/stacklok/device-registry-server/internal/versions"
)

const (
	// DefaultServiceName identifies the server when serviceName is unset
	DefaultServiceName = "device-registry-api"

	// DefaultEndpoint is the OTLP/HTTP collector address used when endpoint is unset
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the trace sampling ratio used when sampling is unset
	DefaultSampling = 0.05
)

var (
	// ErrInvalidSampling is returned for a sampling ratio outside [0, 1]
	ErrInvalidSampling = errors.New("sampling ratio must be within [0.0, 1.0]")

	// ErrPrometheusWithoutMetrics is returned when Prometheus exposition is
	// requested while metrics collection is off
	ErrPrometheusWithoutMetrics = errors.New("prometheus exposition requires metrics to be enabled")
)

// Config is the telemetry section of the server configuration
type Config struct {
	// Enabled turns telemetry on. When false both providers are no-ops
	// whatever the tracing and metrics sections say.
	Enabled bool `yaml:"enabled"`

	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector "host:port". The exporters append the
	// /v1/traces and /v1/metrics paths.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure exports over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of traces kept. Zero selects DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig configures metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prometheus also serves the metrics for scraping at /metrics
	Prometheus bool `yaml:"prometheus,omitempty"`
}

// GetServiceName returns the configured service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the configured service version or the build version
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return versions.Version
	}
	return c.ServiceVersion
}

// GetEndpoint returns the configured collector endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// PrometheusEnabled reports whether /metrics should be served
func (c *Config) PrometheusEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Prometheus
}

// GetSampling returns the sampling ratio. An unset (zero) ratio cannot be
// told apart from an explicit zero in YAML, so both select DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// Validate checks the telemetry section. A nil or disabled section is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if c.Tracing != nil && c.Tracing.Enabled {
		if c.Tracing.Sampling < 0 || c.Tracing.Sampling > 1 {
			errs = append(errs, fmt.Errorf("tracing: %w, got %g", ErrInvalidSampling, c.Tracing.Sampling))
		}
	}
	if c.Metrics != nil && c.Metrics.Prometheus && !c.Metrics.Enabled {
		errs = append(errs, fmt.Errorf("metrics: %w", ErrPrometheusWithoutMetrics))
	}
	return errors.Join(errs...)
}
