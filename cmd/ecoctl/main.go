// Command ecoctl holds operator tasks that do not belong in the API.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ecoenergy/eco-energy/internal/database"
	"github.com/ecoenergy/eco-energy/pkg/config"
	"github.com/ecoenergy/eco-energy/pkg/util"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "ecoctl",
		Short: "Operator tool for the eco-energy service",
		Long: `Operator commands for eco-energy:
- migrate: create or update the database schema
- create-admin: bootstrap an organization and a global administrator
- reevaluate: queue an alert re-evaluation sweep
- queues: show background queue statistics
- seed: load a demo fleet with generated readings`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			c, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = c
			logger = util.NewLogger(cfg.Server.Env)
			slog.SetDefault(logger)
			return nil
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, func(), error) {
	db, err := database.Connect(&cfg.Database, logger, false)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = database.Close(db) }, nil
}
