package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/service"
	database "github.com/stacklok/device-registry-server/internal/service/db"
	"github.com/stacklok/device-registry-server/internal/sync/coordinator"
)

// DatabaseFactory creates PostgreSQL-backed storage components.
type DatabaseFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
	tracer trace.Tracer

	once     sync.Once
	store    *database.Store
	storeErr error
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database,
// retrying until the server answers or the connect timeout elapses.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, o *factoryOptions) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}
	if o == nil {
		o = &factoryOptions{connectTimeout: DefaultConnectTimeout}
	}

	slog.Info("Creating database-backed storage factory")

	pool, err := buildDatabaseConnectionPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	_, err = connectWithRetry(ctx, config.StorageTypeDatabase, o.connectTimeout, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DatabaseFactory{
		config: cfg,
		pool:   pool,
		tracer: o.tracer,
	}, nil
}

// Backend implements Factory.Backend
func (*DatabaseFactory) Backend() string {
	return config.StorageTypeDatabase
}

// CreateRegistryStore creates a database-backed registry store.
func (d *DatabaseFactory) CreateRegistryStore(_ context.Context) (service.RegistryStore, error) {
	return d.getStore()
}

// CreateSnapshotWriter returns the database store, which replaces both
// registry tables in one transaction
func (d *DatabaseFactory) CreateSnapshotWriter(_ context.Context) (service.SnapshotWriter, error) {
	return d.getStore()
}

// CreateRefresher returns nil: the database is refreshed with the load command
func (*DatabaseFactory) CreateRefresher(_ context.Context, _ ...coordinator.Option) (coordinator.Coordinator, error) {
	return nil, nil
}

// Pool returns the underlying connection pool
func (d *DatabaseFactory) Pool() *pgxpool.Pool {
	return d.pool
}

// Cleanup releases resources held by the database factory.
// This closes the database connection pool and any active connections.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

func (d *DatabaseFactory) getStore() (*database.Store, error) {
	d.once.Do(func() {
		slog.Debug("Creating database-backed registry store")

		opts := []database.Option{
			database.WithConnectionPool(d.pool),
			database.WithSource(fmt.Sprintf("%s:%d/%s", d.config.Database.Host, d.config.Database.Port, d.config.Database.Database)),
		}
		if d.tracer != nil {
			opts = append(opts, database.WithTracer(d.tracer))
			slog.Debug("Database store tracing enabled")
		}

		d.store, d.storeErr = database.New(opts...)
	})
	return d.store, d.storeErr
}

// buildDatabaseConnectionPool creates a database connection pool with proper configuration.
func buildDatabaseConnectionPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	// Configure pool settings from config
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	lifetime, err := cfg.GetConnMaxLifetime()
	if err != nil {
		return nil, err
	}
	if lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	slog.Info("Database connection pool created successfully")
	return pool, nil
}
