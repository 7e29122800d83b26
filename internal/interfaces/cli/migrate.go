package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres"
)

// newMigrateCommand groups the registry schema migration subcommands.
func newMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the registry database schema",
	}

	cmd.AddCommand(
		newMigrateUpCommand(opts),
		newMigrateDownCommand(opts),
		newMigrateStatusCommand(opts),
		newMigrateForceCommand(opts),
	)

	return cmd
}

func newMigrateUpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := postgres.Migrate(postgres.BuildDSN(cfg.Database), sourceURL(cfg.Database.MigrationPath)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newMigrateDownCommand(opts *RootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll the schema back by N steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(postgres.BuildDSN(cfg.Database), sourceURL(cfg.Database.MigrationPath), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d step(s)\n", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func newMigrateStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			version, dirty, err := postgres.MigrationStatus(postgres.BuildDSN(cfg.Database), sourceURL(cfg.Database.MigrationPath))
			if err != nil {
				return err
			}
			if opts.Output == "json" {
				return printJSON(cmd, map[string]interface{}{"version": version, "dirty": dirty})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d\ndirty: %v\n", version, dirty)
			return nil
		},
	}
}

func newMigrateForceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema version after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := postgres.ForceMigrationVersion(postgres.BuildDSN(cfg.Database), sourceURL(cfg.Database.MigrationPath), version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version forced to %d\n", version)
			return nil
		},
	}
}

// sourceURL turns a bare directory path into the file:// source URL the
// migration library expects; URLs pass through unchanged.
func sourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}
