package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"race-photos-backend/internal/config"
	"race-photos-backend/internal/database"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/supabase"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Example: `  # Apply pending migrations
  racephotos migrate

  # List migrations without applying them
  racephotos migrate --status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDatabase()
		if err != nil {
			return err
		}
		logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "migrate"})

		db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator := database.NewMigrator(db.DB())
		if !migrateStatusOnly {
			if err := migrator.Run(cmd.Context()); err != nil {
				return err
			}
		}

		statuses, err := migrator.Status(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range statuses {
			mark := "pending"
			if s.Applied {
				mark = "applied"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", mark, s.Name)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "only list migrations and whether they are applied")
}
