package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stacklok/device-registry-server/database"
	"github.com/stacklok/device-registry-server/internal/config"
)

// migrator is the subset of the database package used by the migrate commands
type migrator struct {
	up      func(connString string) error
	down    func(connString string, steps uint) error
	version func(connString string) (uint, bool, error)
}

var defaultMigrator = migrator{
	up:      database.MigrateUp,
	down:    database.MigrateDown,
	version: database.GetVersion,
}

func newMigrateCmd() *cobra.Command {
	return newMigrateCmdWith(defaultMigrator)
}

func newMigrateCmdWith(m migrator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := cmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	cmd.AddCommand(newMigrateUpCmd(m))
	cmd.AddCommand(newMigrateDownCmd(m))
	return cmd
}

func newMigrateUpCmd(m migrator) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the schema up to date.
This command reads the database connection parameters from the config file
and applies all migrations that haven't been run yet.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, connString, err := migrationTarget(cmd)
			if err != nil {
				return err
			}

			prompt := fmt.Sprintf("About to apply migrations to database %s@%s:%d/%s. Continue?",
				cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
			proceed, err := confirmWithFlag(cmd, prompt)
			if err != nil || !proceed {
				return err
			}

			slog.Info("Applying database migrations...")
			if err := m.up(connString); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			logMigrationVersion(m, connString)
			return nil
		},
	}
}

func newMigrateDownCmd(m migrator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  device-registry-api migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all data)
  device-registry-api migrate down --config config.yaml --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, connString, err := migrationTarget(cmd)
			if err != nil {
				return err
			}

			numSteps, err := cmd.Flags().GetUint("num-steps")
			if err != nil {
				return fmt.Errorf("failed to get num-steps flag: %w", err)
			}

			var prompt string
			if numSteps == 0 {
				prompt = "WARNING: This will migrate down ALL steps and may result in complete data loss. Continue?"
			} else {
				prompt = fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", numSteps)
			}
			proceed, err := confirmWithFlag(cmd, prompt)
			if err != nil || !proceed {
				return err
			}

			if numSteps == 0 {
				slog.Warn("Migrating down all steps - this will remove all schema!")
			} else {
				slog.Info("Migrating down", "steps", numSteps)
			}
			if err := m.down(connString, numSteps); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			logMigrationVersion(m, connString)
			return nil
		},
	}
	cmd.Flags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")
	return cmd
}

// migrationTarget loads the config and resolves the database connection string
func migrationTarget(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return nil, "", fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build connection string: %w", err)
	}
	return cfg, connString, nil
}

// confirmWithFlag returns true when --yes is set or the user answers yes.
// A non-interactive stdin without --yes is an error.
func confirmWithFlag(cmd *cobra.Command, prompt string) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return true, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal; pass --yes to confirm")
	}

	if !confirm(in, cmd.OutOrStdout(), prompt) {
		slog.Info("Migration cancelled by user")
		return false, nil
	}
	return true, nil
}

// confirm prints prompt and reads a yes/no answer
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprintf(out, "%s (yes/no): ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func logMigrationVersion(m migrator, connString string) {
	version, dirty, err := m.version(connString)
	switch {
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state; manual intervention may be required", "version", version)
	default:
		slog.Info("Migrations applied successfully", "version", version)
	}
}
