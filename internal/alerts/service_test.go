package alerts_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/ecoenergy/eco-energy/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *alerts.Service
	metrics *metrics.DomainMetrics
	device  *models.Device
	product *models.Product
	rule    *models.AlertRule
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	m := metrics.NewDomainMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	org := testutil.CreateTestOrg(t, db)
	zone := testutil.CreateTestZone(t, db, org.ID, "")
	product := testutil.CreateTestProduct(t, db)
	device := testutil.CreateTestDevice(t, db, zone, product, "")
	rule := testutil.CreateTestAlertRule(t, db, "High Energy Consumption", models.SeverityHigh, nil, testutil.Float(10))

	return &fixture{
		db:      db,
		svc:     alerts.NewService(db, logger, m),
		metrics: m,
		device:  device,
		product: product,
		rule:    rule,
	}
}

func TestService_RecordMeasurement(t *testing.T) {
	fx := newFixture(t)
	ctx := testutil.TestContext(t)

	t.Run("no alert", func(t *testing.T) {
		m, err := fx.svc.RecordMeasurement(ctx, fx.device, 4.5, time.Time{})
		require.NoError(t, err)
		assert.Nil(t, m.TriggeredAlertID)
		assert.Equal(t, fx.device.OrganizationID, m.OrganizationID)
		assert.False(t, m.MeasuredAt.IsZero())
	})

	t.Run("alert attached", func(t *testing.T) {
		m, err := fx.svc.RecordMeasurement(ctx, fx.device, 12, time.Now())
		require.NoError(t, err)
		require.NotNil(t, m.TriggeredAlertID)
		assert.Equal(t, fx.rule.ID, *m.TriggeredAlertID)

		var stored models.Measurement
		require.NoError(t, fx.db.First(&stored, "id = ?", m.ID).Error)
		require.NotNil(t, stored.TriggeredAlertID)
		assert.Equal(t, fx.rule.ID, *stored.TriggeredAlertID)
	})

	t.Run("bounds of the energy range are accepted", func(t *testing.T) {
		_, err := fx.svc.RecordMeasurement(ctx, fx.device, 0, time.Time{})
		require.NoError(t, err)
		_, err = fx.svc.RecordMeasurement(ctx, fx.device, 10000, time.Time{})
		require.NoError(t, err)
	})

	t.Run("out of range rejected", func(t *testing.T) {
		_, err := fx.svc.RecordMeasurement(ctx, fx.device, -0.01, time.Time{})
		assert.ErrorIs(t, err, alerts.ErrEnergyOutOfRange)
		_, err = fx.svc.RecordMeasurement(ctx, fx.device, 10000.01, time.Time{})
		assert.ErrorIs(t, err, alerts.ErrEnergyOutOfRange)
	})

	t.Run("inactive device rejected", func(t *testing.T) {
		inactive := *fx.device
		inactive.Status = models.StatusInactive
		_, err := fx.svc.RecordMeasurement(ctx, &inactive, 1, time.Time{})
		assert.ErrorIs(t, err, alerts.ErrDeviceInactive)
	})

	assert.Equal(t, 4.0, promtest.ToFloat64(fx.metrics.MeasurementsRecorded))
	assert.Equal(t, 2.0, promtest.ToFloat64(fx.metrics.AlertsTriggered.WithLabelValues("HIGH")))
}

func TestService_RecordMeasurement_UsesOverride(t *testing.T) {
	fx := newFixture(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, fx.db.Create(&models.ProductAlertRule{
		ProductID:    fx.product.ID,
		AlertRuleID:  fx.rule.ID,
		MaxThreshold: testutil.Float(50),
		Status:       models.StatusActive,
	}).Error)

	m, err := fx.svc.RecordMeasurement(ctx, fx.device, 20, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, m.TriggeredAlertID)
}

func TestService_Reevaluate(t *testing.T) {
	fx := newFixture(t)
	ctx := testutil.TestContext(t)

	quiet := testutil.CreateTestMeasurement(t, fx.db, fx.device, 20, nil)
	alerting := testutil.CreateTestMeasurement(t, fx.db, fx.device, 12, &fx.rule.ID)
	fine := testutil.CreateTestMeasurement(t, fx.db, fx.device, 3, nil)

	// Product now tolerates up to 15 kWh.
	require.NoError(t, fx.db.Create(&models.ProductAlertRule{
		ProductID:    fx.product.ID,
		AlertRuleID:  fx.rule.ID,
		MaxThreshold: testutil.Float(15),
		Status:       models.StatusActive,
	}).Error)

	changed, err := fx.svc.Reevaluate(ctx, alerts.ReevaluateFilter{ProductID: fx.product.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	load := func(id uuid.UUID) models.Measurement {
		var m models.Measurement
		require.NoError(t, fx.db.First(&m, "id = ?", id).Error)
		return m
	}

	got := load(quiet.ID)
	require.NotNil(t, got.TriggeredAlertID)
	assert.Equal(t, fx.rule.ID, *got.TriggeredAlertID)
	assert.Nil(t, load(alerting.ID).TriggeredAlertID)
	assert.Nil(t, load(fine.ID).TriggeredAlertID)

	// Second pass is a no-op.
	changed, err = fx.svc.Reevaluate(ctx, alerts.ReevaluateFilter{})
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Equal(t, 2.0, promtest.ToFloat64(fx.metrics.ReevaluatedChanged))
}

func TestService_Reevaluate_OrganizationFilter(t *testing.T) {
	fx := newFixture(t)
	ctx := testutil.TestContext(t)

	otherOrg := testutil.CreateTestOrg(t, fx.db)
	otherZone := testutil.CreateTestZone(t, fx.db, otherOrg.ID, "")
	otherDevice := testutil.CreateTestDevice(t, fx.db, otherZone, fx.product, "")

	mine := testutil.CreateTestMeasurement(t, fx.db, fx.device, 20, nil)
	theirs := testutil.CreateTestMeasurement(t, fx.db, otherDevice, 20, nil)

	changed, err := fx.svc.Reevaluate(ctx, alerts.ReevaluateFilter{OrganizationID: fx.device.OrganizationID})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	var got, untouched models.Measurement
	require.NoError(t, fx.db.First(&got, "id = ?", mine.ID).Error)
	assert.NotNil(t, got.TriggeredAlertID)
	require.NoError(t, fx.db.First(&untouched, "id = ?", theirs.ID).Error)
	assert.Nil(t, untouched.TriggeredAlertID)
}
