package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/service"
	"github.com/stacklok/device-registry-server/internal/service/sqlite"
	"github.com/stacklok/device-registry-server/internal/sync/coordinator"
)

// SQLiteFactory creates components backed by an embedded SQLite database.
type SQLiteFactory struct {
	store *sqlite.Store
}

var _ Factory = (*SQLiteFactory)(nil)

// NewSQLiteFactory opens the configured database file, creating it and its
// tables when missing
func NewSQLiteFactory(ctx context.Context, cfg *config.Config) (*SQLiteFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Storage.SQLite == nil {
		return nil, fmt.Errorf("sqlite configuration is required for sqlite storage type")
	}

	sqliteCfg := cfg.Storage.SQLite
	slog.Info("Creating SQLite storage factory",
		"path", sqliteCfg.Path,
		"wal_mode", sqliteCfg.WALMode)

	store, err := sqlite.Open(ctx, sqlite.Config{
		Path:        sqliteCfg.Path,
		BusyTimeout: sqliteCfg.GetSQLiteBusyTimeout(),
		WALMode:     sqliteCfg.WALMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteFactory{store: store}, nil
}

// Backend implements Factory.Backend
func (*SQLiteFactory) Backend() string {
	return config.StorageTypeSQLite
}

// CreateRegistryStore returns the SQLite store
func (f *SQLiteFactory) CreateRegistryStore(_ context.Context) (service.RegistryStore, error) {
	return f.store, nil
}

// CreateSnapshotWriter returns the SQLite store
func (f *SQLiteFactory) CreateSnapshotWriter(_ context.Context) (service.SnapshotWriter, error) {
	return f.store, nil
}

// CreateRefresher returns nil: the database is refreshed with the load command
func (*SQLiteFactory) CreateRefresher(_ context.Context, _ ...coordinator.Option) (coordinator.Coordinator, error) {
	return nil, nil
}

// Cleanup closes the database
func (f *SQLiteFactory) Cleanup() {
	if f.store == nil {
		return
	}
	slog.Info("Closing SQLite database")
	if err := f.store.Close(); err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
}
