// Package storage provides factory functions for creating storage-dependent components.
// It implements the Abstract Factory pattern so the store that serves lookups,
// the writer that loads snapshots and the refresher that keeps a snapshot fresh
// always share one backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/service"
	"github.com/stacklok/device-registry-server/internal/sync/coordinator"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// ErrReadOnly is returned by CreateSnapshotWriter for backends that cannot be
// written through the API, such as a snapshot file.
var ErrReadOnly = errors.New("storage backend is read-only")

// DefaultConnectTimeout bounds the time spent retrying the initial connection
// to a network backend
const DefaultConnectTimeout = 30 * time.Second

// Factory creates storage-dependent components as a family.
// Implementations ensure all components share one backend.
//
// It also manages the lifecycle of storage resources (e.g., connection pools).
type Factory interface {
	// Backend returns the storage type served by this factory
	Backend() string

	// CreateRegistryStore creates the store lookups are served from.
	// Repeated calls return the same store.
	CreateRegistryStore(ctx context.Context) (service.RegistryStore, error)

	// CreateSnapshotWriter creates a writer that replaces the backend's data.
	// Read-only backends return ErrReadOnly.
	CreateSnapshotWriter(ctx context.Context) (service.SnapshotWriter, error)

	// CreateRefresher creates the coordinator keeping the store fresh. It
	// returns nil when the backend does not need background refreshes.
	CreateRefresher(ctx context.Context, opts ...coordinator.Option) (coordinator.Coordinator, error)

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// Option configures the factories created by NewStorageFactory
type Option func(*factoryOptions)

type factoryOptions struct {
	tracer         trace.Tracer
	connectTimeout time.Duration
}

// WithTracer sets the OpenTelemetry tracer for stores that support tracing.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *factoryOptions) {
		o.tracer = tracer
	}
}

// WithConnectTimeout bounds the retries of the initial connection to a
// network backend. A non-positive value makes a single attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *factoryOptions) {
		o.connectTimeout = d
	}
}

// NewStorageFactory creates a storage factory based on the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &factoryOptions{connectTimeout: DefaultConnectTimeout}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Storage.Type {
	case config.StorageTypeFile:
		return NewFileFactory(ctx, cfg)
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg, o)
	case config.StorageTypeSQLite:
		return NewSQLiteFactory(ctx, cfg)
	case config.StorageTypeRedis:
		return NewRedisFactory(ctx, cfg, o)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}
}

// connectWithRetry runs connect with exponential backoff until it succeeds,
// the context ends or timeout elapses
func connectWithRetry[T any](ctx context.Context, what string, timeout time.Duration, connect func() (T, error)) (T, error) {
	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Connection attempt failed, retrying",
				"backend", what,
				"error", err,
				"retry_in", next)
		}),
	}
	if timeout > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(timeout))
	} else {
		retryOpts = append(retryOpts, backoff.WithMaxTries(1))
	}

	return backoff.Retry(ctx, connect, retryOpts...)
}
