// Package service provides the business logic for the device registry API
package service

import (
	"context"
	"errors"
	"time"

	"github.com/stacklok/device-registry-server/internal/registry"
)

var (
	// ErrRetrieval is returned when registry data cannot be read from the store
	ErrRetrieval = errors.New("failed to retrieve registry data")
	// ErrUnknownRegistry is returned when a registry identifier is not recognised
	ErrUnknownRegistry = registry.ErrUnknownRegistry
	// ErrNotReady is returned when the store has no data loaded yet
	ErrNotReady = errors.New("registry store is not ready")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go DeviceService,RegistryStore,SnapshotWriter

// DeviceService defines the device lookup operations exposed by the API
type DeviceService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// LookupRegistryA returns every FDA record whose device name matches
	// deviceName case-insensitively
	LookupRegistryA(ctx context.Context, deviceName string) ([]registry.Record, error)

	// LookupRegistryB returns every EUDAMED record whose device name matches
	// deviceName case-insensitively
	LookupRegistryB(ctx context.Context, deviceName string) ([]registry.Record, error)

	// LookupCombined returns the reconciled view of both registries for a device
	LookupCombined(ctx context.Context, deviceName string) ([]registry.Record, error)

	// Info returns metadata about the backing store
	Info(ctx context.Context) (*StoreInfo, error)
}

// RegistryStore abstracts where registry records are read from.
// Implementations must be safe for concurrent use.
type RegistryStore interface {
	// Query returns the records of registry id whose device name equals
	// deviceName ignoring case. A store with no matching rows returns an
	// empty slice and no error.
	Query(ctx context.Context, id registry.ID, deviceName string) ([]registry.Record, error)

	// Ping verifies the store is reachable and holds data
	Ping(ctx context.Context) error

	// Describe returns metadata about the store and its loaded data
	Describe(ctx context.Context) (*StoreInfo, error)
}

// SnapshotWriter is implemented by stores whose data can be replaced with a
// new snapshot
type SnapshotWriter interface {
	// Replace atomically swaps the store's data for the snapshot's records
	Replace(ctx context.Context, snap *registry.Snapshot) error
}

// StoreInfo describes a registry store and the data it holds
type StoreInfo struct {
	// Backend is the storage type, e.g. "file", "database", "sqlite" or "redis"
	Backend string `json:"backend"`
	// Source describes where the data lives, e.g. a file path or a database name
	Source string `json:"source,omitempty"`
	// SnapshotVersion is the version of the loaded snapshot, if any
	SnapshotVersion string `json:"snapshot_version,omitempty"`
	// SnapshotID identifies the load that produced the data
	SnapshotID string `json:"snapshot_id,omitempty"`
	// LoadedAt is when the data was loaded
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	// RecordCounts holds the number of records per registry
	RecordCounts map[registry.ID]int `json:"record_counts"`
}
