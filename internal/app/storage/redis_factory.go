package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/service"
	"github.com/stacklok/device-registry-server/internal/service/redis"
	"github.com/stacklok/device-registry-server/internal/sync/coordinator"
)

// RedisFactory creates components backed by Redis.
type RedisFactory struct {
	store *redis.Store
}

var _ Factory = (*RedisFactory)(nil)

// NewRedisFactory connects to the configured server, retrying until it
// answers or the connect timeout elapses
func NewRedisFactory(ctx context.Context, cfg *config.Config, o *factoryOptions) (*RedisFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Storage.Redis == nil {
		return nil, fmt.Errorf("redis configuration is required for redis storage type")
	}
	if o == nil {
		o = &factoryOptions{connectTimeout: DefaultConnectTimeout}
	}

	redisCfg := redis.Config{
		URL:       cfg.Storage.Redis.URL,
		PoolSize:  cfg.Storage.Redis.PoolSize,
		KeyPrefix: cfg.Storage.Redis.KeyPrefix,
	}
	slog.Info("Creating Redis storage factory", "key_prefix", redisCfg.KeyPrefix)

	store, err := connectWithRetry(ctx, config.StorageTypeRedis, o.connectTimeout, func() (*redis.Store, error) {
		store, err := redis.Connect(ctx, redisCfg)
		if errors.Is(err, redis.ErrInvalidURL) {
			return nil, backoff.Permanent(err)
		}
		return store, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisFactory{store: store}, nil
}

// Backend implements Factory.Backend
func (*RedisFactory) Backend() string {
	return config.StorageTypeRedis
}

// CreateRegistryStore returns the Redis store
func (f *RedisFactory) CreateRegistryStore(_ context.Context) (service.RegistryStore, error) {
	return f.store, nil
}

// CreateSnapshotWriter returns the Redis store
func (f *RedisFactory) CreateSnapshotWriter(_ context.Context) (service.SnapshotWriter, error) {
	return f.store, nil
}

// CreateRefresher returns nil: Redis is refreshed with the load command
func (*RedisFactory) CreateRefresher(_ context.Context, _ ...coordinator.Option) (coordinator.Coordinator, error) {
	return nil, nil
}

// Cleanup closes the Redis client
func (f *RedisFactory) Cleanup() {
	if f.store == nil {
		return
	}
	slog.Info("Closing Redis client")
	if err := f.store.Close(); err != nil {
		slog.Error("Failed to close Redis client", "error", err)
	}
}
