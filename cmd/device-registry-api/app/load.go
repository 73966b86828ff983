package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/device-registry-server/internal/app/storage"
	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/versions"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <snapshot>",
		Short: "Load a registry snapshot into the configured store",
		Long: `Load replaces the data of the configured database, sqlite or redis store with
the records of a JSON or YAML snapshot file. The snapshot is validated in full
before anything is written. The file backend is read-only; point its
storage.file.path at the snapshot instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			dryRun, err := cmd.Flags().GetBool("dry-run")
			if err != nil {
				return fmt.Errorf("failed to get dry-run flag: %w", err)
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return fmt.Errorf("failed to get force flag: %w", err)
			}
			return runLoad(cmd, configPath, args[0], dryRun, force)
		},
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().Bool("dry-run", false, "Validate the snapshot and print a summary without writing")
	cmd.Flags().Bool("force", false, "Load even if the snapshot version is older than the stored one")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

func runLoad(cmd *cobra.Command, configPath, snapshotPath string, dryRun, force bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	snap, err := registry.ReadSnapshotFile(snapshotPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "snapshot %s: version=%q", snapshotPath, snap.Version)
	for _, id := range registry.IDs() {
		_, _ = fmt.Fprintf(out, " %s=%d", id, snap.Count(id))
	}
	_, _ = fmt.Fprintln(out)

	if dryRun {
		return nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	writer, err := factory.CreateSnapshotWriter(ctx)
	if err != nil {
		return fmt.Errorf("cannot load into %s storage: %w", factory.Backend(), err)
	}

	if !force {
		store, err := factory.CreateRegistryStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to create registry store: %w", err)
		}
		info, err := store.Describe(ctx)
		if err != nil {
			return fmt.Errorf("failed to describe store: %w", err)
		}
		if versions.IsDowngrade(snap.Version, info.SnapshotVersion) {
			return fmt.Errorf("snapshot version %s is older than stored version %s (use --force to load anyway)",
				snap.Version, info.SnapshotVersion)
		}
	}

	if err := writer.Replace(ctx, snap); err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	slog.Info("Snapshot loaded",
		"backend", factory.Backend(),
		"version", snap.Version,
		"snapshot_id", snap.ID,
	)
	return nil
}
