// Package seed fills a database with a demo fleet: organizations, zones,
// catalog products, devices, default alert rules and a history of readings.
// Everything goes through the inventory and alert services, so seeded data
// obeys the same rules as data written through the API.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"gorm.io/gorm"
)

const nameAttempts = 5

var global = access.Scope{Role: models.RoleGlobalAdmin, All: true}

// Options sizes the generated fleet. Zero counts fall back to defaults.
type Options struct {
	Organizations         int
	ZonesPerOrganization  int
	DevicesPerZone        int
	MeasurementsPerDevice int
	// Span is how far back readings go. Readings are evenly spaced up to now.
	Span time.Duration
	// Seed makes a run reproducible. Zero picks a random seed.
	Seed uint64
}

func (o Options) withDefaults() Options {
	if o.Organizations <= 0 {
		o.Organizations = 2
	}
	if o.ZonesPerOrganization <= 0 {
		o.ZonesPerOrganization = 3
	}
	if o.DevicesPerZone <= 0 {
		o.DevicesPerZone = 4
	}
	if o.MeasurementsPerDevice <= 0 {
		o.MeasurementsPerDevice = 24
	}
	if o.Span <= 0 {
		o.Span = 24 * time.Hour
	}
	return o
}

// Summary counts what a run created.
type Summary struct {
	Organizations int
	Zones         int
	Products      int
	Rules         int
	Devices       int
	Measurements  int
	Alerts        int
}

type Seeder struct {
	db        *gorm.DB
	inventory *inventory.Service
	alerts    *alerts.Service
	logger    *slog.Logger
	now       func() time.Time
}

func New(db *gorm.DB, inv *inventory.Service, alertService *alerts.Service, logger *slog.Logger) *Seeder {
	return &Seeder{db: db, inventory: inv, alerts: alertService, logger: logger, now: time.Now}
}

// DefaultRules are created when no rule with the same name exists.
var DefaultRules = []alerts.RuleInput{
	{Name: "Unusually low consumption", Severity: models.SeverityLow, Min: floatPtr(0.05)},
	{Name: "Consumption above normal", Severity: models.SeverityMedium, Max: floatPtr(5)},
	{Name: "High consumption", Severity: models.SeverityHigh, Max: floatPtr(20)},
	{Name: "Critical overload", Severity: models.SeverityCritical, Max: floatPtr(100)},
}

var categories = []string{"Refrigeration", "HVAC", "Lighting", "Motors and pumps", "IT equipment"}

func floatPtr(v float64) *float64 { return &v }

func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	faker := gofakeit.New(opts.Seed)
	var sum Summary

	rules, err := s.ensureRules(ctx)
	if err != nil {
		return sum, err
	}
	sum.Rules = rules

	products, err := s.ensureCatalog(ctx, faker)
	if err != nil {
		return sum, err
	}
	sum.Products = len(products)

	for i := 0; i < opts.Organizations; i++ {
		org, err := s.createOrganization(ctx, faker)
		if err != nil {
			return sum, err
		}
		sum.Organizations++

		for j := 0; j < opts.ZonesPerOrganization; j++ {
			zone, err := s.inventory.CreateZone(ctx, global, inventory.ZoneInput{
				OrganizationID: org.ID,
				Name:           fmt.Sprintf("%s %d", faker.RandomString([]string{"Floor", "Warehouse", "Lab", "Office", "Plant"}), j+1),
			})
			if err != nil {
				return sum, fmt.Errorf("creating zone: %w", err)
			}
			sum.Zones++

			for k := 0; k < opts.DevicesPerZone; k++ {
				product := products[faker.IntN(len(products))]
				device, err := s.inventory.CreateDevice(ctx, global, inventory.DeviceInput{
					OrganizationID: org.ID,
					ZoneID:         zone.ID,
					ProductID:      product.ID,
					Name:           fmt.Sprintf("%s %s-%d", product.ModelName, zone.Name, k+1),
					SerialNumber:   faker.Numerify("SN-########"),
					MaxPowerW:      faker.IntRange(100, 5000),
				})
				if err != nil {
					return sum, fmt.Errorf("creating device: %w", err)
				}
				sum.Devices++

				n, alerted, err := s.recordHistory(ctx, faker, device, opts)
				if err != nil {
					return sum, err
				}
				sum.Measurements += n
				sum.Alerts += alerted
			}
		}
	}

	s.logger.Info("seed complete",
		"organizations", sum.Organizations,
		"zones", sum.Zones,
		"devices", sum.Devices,
		"measurements", sum.Measurements,
		"alerts", sum.Alerts,
	)
	return sum, nil
}

func (s *Seeder) ensureRules(ctx context.Context) (int, error) {
	existing, err := s.alerts.ListRules(ctx, "")
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, r := range existing {
		have[r.Name] = true
	}

	created := 0
	for _, in := range DefaultRules {
		if have[in.Name] {
			continue
		}
		if _, err := s.alerts.CreateRule(ctx, global, in); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// ensureCatalog creates one product per category, reusing categories that
// already exist under the same name.
func (s *Seeder) ensureCatalog(ctx context.Context, faker *gofakeit.Faker) ([]*models.Product, error) {
	products := make([]*models.Product, 0, len(categories))
	for _, name := range categories {
		var category models.Category
		err := s.db.WithContext(ctx).Where("name = ? AND status = ?", name, models.StatusActive).First(&category).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created, err := s.inventory.CreateCategory(ctx, global, inventory.CategoryInput{Name: name})
			if err != nil {
				return nil, fmt.Errorf("creating category %q: %w", name, err)
			}
			category = *created
		case err != nil:
			return nil, fmt.Errorf("loading category %q: %w", name, err)
		}

		product, err := s.inventory.CreateProduct(ctx, global, inventory.ProductInput{
			CategoryID:      category.ID,
			Name:            faker.ProductName(),
			SKU:             fmt.Sprintf("ECO-%s", faker.Regex(`[A-Z]{3}[0-9]{5}`)),
			Manufacturer:    faker.Company(),
			ModelName:       faker.Regex(`[A-Z]{2}[0-9]{3}`),
			Description:     faker.ProductDescription(),
			NominalVoltageV: floatPtr(230),
			MaxCurrentA:     floatPtr(math.Round(faker.Float64Range(1, 32)*10) / 10),
			StandbyPowerW:   floatPtr(math.Round(faker.Float64Range(0, 5)*10) / 10),
		})
		if err != nil {
			return nil, fmt.Errorf("creating product: %w", err)
		}
		products = append(products, product)
	}
	return products, nil
}

func (s *Seeder) createOrganization(ctx context.Context, faker *gofakeit.Faker) (*models.Organization, error) {
	var lastErr error
	for i := 0; i < nameAttempts; i++ {
		org, err := s.inventory.CreateOrganization(ctx, global, inventory.OrganizationInput{Name: faker.Company()})
		if errors.Is(err, inventory.ErrNameTaken) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating organization: %w", err)
		}
		return org, nil
	}
	return nil, fmt.Errorf("creating organization: %w", lastErr)
}

// recordHistory writes readings that follow a daily load curve with noise
// and the odd spike, so some of them trip the default rules.
func (s *Seeder) recordHistory(ctx context.Context, faker *gofakeit.Faker, device *models.Device, opts Options) (int, int, error) {
	ratedKW := float64(device.MaxPowerW) / 1000
	baseLoad := faker.Float64Range(0.2, 0.6)
	step := opts.Span / time.Duration(opts.MeasurementsPerDevice)
	start := s.now().Add(-opts.Span)

	alerted := 0
	for i := 1; i <= opts.MeasurementsPerDevice; i++ {
		at := start.Add(step * time.Duration(i))
		energy := Reading(faker, ratedKW, baseLoad, at)

		m, err := s.alerts.RecordMeasurement(ctx, device, energy, at)
		if err != nil {
			return i - 1, alerted, fmt.Errorf("recording measurement for %s: %w", device.ID, err)
		}
		if m.TriggeredAlertID != nil {
			alerted++
		}
	}
	return opts.MeasurementsPerDevice, alerted, nil
}

// Reading returns one hour of consumption in kWh for a device rated at
// ratedKW. Load peaks mid-afternoon; about one reading in twenty is a spike.
func Reading(faker *gofakeit.Faker, ratedKW, baseLoad float64, at time.Time) float64 {
	hour := float64(at.Hour())
	daily := 0.25 * math.Sin((hour-8)*math.Pi/12)
	noise := (faker.Float64() - 0.5) * 0.1

	load := baseLoad + daily + noise
	if faker.Float64() < 0.05 {
		load *= faker.Float64Range(3, 10)
	}
	load = math.Max(load, 0)

	energy := math.Round(ratedKW*load*1000) / 1000
	return math.Min(energy, models.MaxEnergyKWh)
}
