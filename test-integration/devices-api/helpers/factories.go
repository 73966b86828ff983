package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stacklok/device-registry-server/internal/app/storage"
	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/registry"
)

// SnapshotData is the on-disk snapshot layout
type SnapshotData struct {
	Version     string            `json:"version,omitempty"`
	FDAData     []registry.Record `json:"fda_data"`
	EUDAMEDData []registry.Record `json:"eudamed_data"`
}

// SnapshotDataFrom converts a snapshot into its file layout
func SnapshotDataFrom(snap *registry.Snapshot) SnapshotData {
	return SnapshotData{
		Version:     snap.Version,
		FDAData:     snap.Records(registry.FDA),
		EUDAMEDData: snap.Records(registry.EUDAMED),
	}
}

// WriteSnapshotFile writes snap as JSON under dir and returns the path
func WriteSnapshotFile(dir, name string, snap *registry.Snapshot) string {
	data, err := json.MarshalIndent(SnapshotDataFrom(snap), "", "  ")
	if err != nil {
		panic(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		panic(err)
	}
	return path
}

// UpdatedFixture returns a newer data set in which TestDevice2 gained a
// EUDAMED counterpart
func UpdatedFixture() *registry.Snapshot {
	base := registry.ReferenceFixture()
	return registry.NewTestSnapshot(
		registry.WithSnapshotVersion("1.1.0"),
		registry.WithRecords(registry.FDA, base.Records(registry.FDA)...),
		registry.WithRecords(registry.EUDAMED, base.Records(registry.EUDAMED)...),
		registry.WithRecords(registry.EUDAMED,
			registry.NewTestRecord(registry.EUDAMED, "555555",
				registry.WithDeviceName("TestDevice2"), registry.WithManufacturer("Manufacturer-B")),
		),
	)
}

// LoadSnapshot writes snap into the store configured by configPath, the
// same way the load command does
func LoadSnapshot(ctx context.Context, configPath string, snap *registry.Snapshot) error {
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer factory.Cleanup()

	writer, err := factory.CreateSnapshotWriter(ctx)
	if err != nil {
		return err
	}
	return writer.Replace(ctx, snap)
}
