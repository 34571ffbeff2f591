package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squash-venue-enrichment/pkg/config"
	"squash-venue-enrichment/pkg/container"
	"squash-venue-enrichment/pkg/database"
	"squash-venue-enrichment/pkg/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the venue tables and seed the category taxonomy",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.Scope{Database: true}); err != nil {
			return err
		}
		db, err := container.Resolve[*database.DB](deps)
		if err != nil {
			return err
		}
		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("migration complete", logging.String("driver", cfg.DatabaseDriver))
		fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
