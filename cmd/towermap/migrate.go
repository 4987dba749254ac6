package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"towermap/internal/config"
	"towermap/internal/store"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := storeOptions(cfg)
			if err != nil {
				return err
			}

			if !dryRun {
				st, err := store.OpenWithOptions(opts)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if err := st.Close(); err != nil {
					return err
				}
			}

			status, err := store.Inspect(opts)
			if err != nil {
				return fmt.Errorf("inspect migrations: %w", err)
			}
			if *jsonOutput {
				return writeJSON(status)
			}
			return writeMigrationStatus(status, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	return cmd
}

func writeMigrationStatus(status *store.MigrationStatus, dryRun bool) error {
	_ = writePlain("driver: %s\n", status.Driver)
	_ = writePlain("current version: %d\n", status.CurrentVersion)
	_ = writePlain("available version: %d\n", status.AvailableVersion)
	if len(status.Pending) == 0 {
		if dryRun {
			return writePlain("No pending migrations.\n")
		}
		return writePlain("Migrations applied successfully.\n")
	}
	_ = writePlain("pending migrations: %d\n", len(status.Pending))
	for _, m := range status.Pending {
		_ = writePlain("  %d: %s\n", m.Version, m.Description)
	}
	return nil
}
