package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/device-registry-server/internal/app/storage"
	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
)

const viewCombined = "combined"

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <device-name>",
		Short: "Look up a device in the configured store",
		Long: `Lookup prints the records matching a device name as a JSON array, using the
same lookup path as the HTTP API. --registry selects fda, eudamed or the
reconciled combined view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			view, err := cmd.Flags().GetString("registry")
			if err != nil {
				return fmt.Errorf("failed to get registry flag: %w", err)
			}
			return runLookup(cmd, configPath, view, args[0])
		},
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().String("registry", viewCombined, "Registry to query: fda, eudamed or combined")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

// lookupFunc selects the service operation for a view name
func lookupFunc(svc service.DeviceService, view string) (func(context.Context, string) ([]registry.Record, error), error) {
	if view == viewCombined {
		return svc.LookupCombined, nil
	}
	id, err := registry.ParseID(view)
	if err != nil {
		return nil, fmt.Errorf("unknown registry %q (expected fda, eudamed or combined)", view)
	}
	if id == registry.EUDAMED {
		return svc.LookupRegistryB, nil
	}
	return svc.LookupRegistryA, nil
}

func runLookup(cmd *cobra.Command, configPath, view, deviceName string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
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

	store, err := factory.CreateRegistryStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create registry store: %w", err)
	}
	svc, err := service.New(store)
	if err != nil {
		return err
	}

	lookup, err := lookupFunc(svc, view)
	if err != nil {
		return err
	}

	records, err := lookup(ctx, deviceName)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
