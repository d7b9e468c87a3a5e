package main

import (
	"github.com/ecoenergy/eco-energy/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		logger.Info("schema up to date", "database", cfg.Database.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
