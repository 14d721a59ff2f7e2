package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres schema",
	Long:  "Manage the postgres schema. Requires STORE_BACKEND=postgres and DATABASE_URL.",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
		if err := m.Up(); err != nil {
			return err
		}
		return printStatus(cmd, m)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Args:  cobra.NoArgs,
	RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
		if err := m.Down(mustGetInt(cmd, "steps")); err != nil {
			return err
		}
		return printStatus(cmd, m)
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied schema version",
	Args:  cobra.NoArgs,
	RunE:  withMigrator(printStatus),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	migrateDownCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
}

func withMigrator(fn func(cmd *cobra.Command, m *database.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cfg.StoreBackend != config.StoreBackendPostgres {
			return errors.New("migrate requires STORE_BACKEND=postgres")
		}

		dbName, err := database.DatabaseName(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		db, err := database.OpenSQL(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		m, err := database.NewMigrator(db, dbName)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()

		return fn(cmd, m)
	}
}

func printStatus(cmd *cobra.Command, m *database.Migrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return printJSON(status)
	}
	if status.Dirty {
		fmt.Printf("Current version: %d (DIRTY - migration incomplete)\n", status.Version)
		return nil
	}
	fmt.Printf("Current version: %d\n", status.Version)
	return nil
}
