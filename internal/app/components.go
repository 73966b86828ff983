package app

import (
	"github.com/stacklok/device-registry-server/internal/service"
	"github.com/stacklok/device-registry-server/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Refresher reloads the snapshot file in the background (nil for backends without one)
	Refresher coordinator.Coordinator

	// DeviceService answers device_name lookups
	DeviceService service.DeviceService

	// Backend names the storage backend serving lookups
	Backend string
}
