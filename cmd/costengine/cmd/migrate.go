// Package cmd - migrate command
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bllfield/intelliwatt-costengine/internal/config"
	"github.com/bllfield/intelliwatt-costengine/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		return migrate.Up(context.Background(), cfg.DBDriver, cfg.DBDSN)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		return migrate.Down(context.Background(), cfg.DBDriver, cfg.DBDSN)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		return migrate.Status(context.Background(), cfg.DBDriver, cfg.DBDSN)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
