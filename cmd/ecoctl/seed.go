package main

import (
	"fmt"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/database"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/ecoenergy/eco-energy/internal/seed"
	"github.com/ecoenergy/eco-energy/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	seedOpts  seed.Options
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo fleet with generated readings",
	Long: `Create demo organizations, zones, devices and a reading history.
Default alert rules are added when missing, so seeded readings trip alerts
the same way live ones would. Refuses to run outside development unless
--force is given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cfg.Server.IsDevelopment() && !seedForce {
			return fmt.Errorf("refusing to seed a %q environment without --force", cfg.Server.Env)
		}

		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := database.AutoMigrate(db); err != nil {
			return err
		}

		alertService := alerts.NewService(db, logger, metrics.NewDomainMetrics(metrics.Registry))
		s := seed.New(db, inventory.NewService(db, logger), alertService, logger)
		sum, err := s.Run(cmd.Context(), seedOpts)
		if err != nil {
			return err
		}

		fmt.Printf("organizations: %d\nzones: %d\ndevices: %d\nmeasurements: %d (%d alerts)\n",
			sum.Organizations, sum.Zones, sum.Devices, sum.Measurements, sum.Alerts)
		return nil
	},
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedOpts.Organizations, "organizations", 2, "organizations to create")
	f.IntVar(&seedOpts.ZonesPerOrganization, "zones", 3, "zones per organization")
	f.IntVar(&seedOpts.DevicesPerZone, "devices", 4, "devices per zone")
	f.IntVar(&seedOpts.MeasurementsPerDevice, "readings", 24, "readings per device")
	f.DurationVar(&seedOpts.Span, "span", 0, "how far back readings go (default 24h)")
	f.Uint64Var(&seedOpts.Seed, "seed", 0, "random seed, 0 for a random one")
	f.BoolVar(&seedForce, "force", false, "allow seeding outside development")

	rootCmd.AddCommand(seedCmd)
}
