package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/service"
	"github.com/stacklok/device-registry-server/internal/service/inmemory"
	"github.com/stacklok/device-registry-server/internal/sync/coordinator"
)

// FileFactory creates components serving a snapshot file from memory.
type FileFactory struct {
	config *config.Config
	store  *inmemory.Store
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a new file-based storage factory.
// The snapshot file is read once up front so a broken file fails startup.
func NewFileFactory(ctx context.Context, cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Storage.File == nil || cfg.Storage.File.Path == "" {
		return nil, fmt.Errorf("file configuration is required for file storage type")
	}

	path := cfg.Storage.File.Path
	slog.Info("Creating file-based storage factory", "path", path)

	store := inmemory.New(path)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	snap := store.Snapshot()
	slog.Info("Snapshot loaded",
		"path", path,
		"version", snap.Version,
		"snapshot_id", snap.ID)

	return &FileFactory{
		config: cfg,
		store:  store,
	}, nil
}

// Backend implements Factory.Backend
func (*FileFactory) Backend() string {
	return config.StorageTypeFile
}

// CreateRegistryStore returns the in-memory store holding the snapshot
func (f *FileFactory) CreateRegistryStore(_ context.Context) (service.RegistryStore, error) {
	return f.store, nil
}

// CreateSnapshotWriter always fails: the snapshot file is the source of truth
func (*FileFactory) CreateSnapshotWriter(_ context.Context) (service.SnapshotWriter, error) {
	return nil, fmt.Errorf("%w: replace the snapshot file instead", ErrReadOnly)
}

// CreateRefresher returns a coordinator reloading the snapshot file, or nil
// when no refresh interval is configured
func (f *FileFactory) CreateRefresher(_ context.Context, opts ...coordinator.Option) (coordinator.Coordinator, error) {
	interval := f.config.GetRefreshInterval()
	if interval <= 0 {
		slog.Debug("Snapshot refresh disabled")
		return nil, nil
	}
	return coordinator.New(f.store, interval, opts...), nil
}

// Cleanup is a no-op: there are no resources to release for file storage
func (*FileFactory) Cleanup() {
	slog.Debug("Cleaning up file storage factory (no-op)")
}
