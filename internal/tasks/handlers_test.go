package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.TestSetup) {
	t.Helper()
	setup := testutil.NewTestContext(t)
	t.Cleanup(setup.Cleanup)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(alerts.NewService(setup.DB, logger, nil), logger), setup
}

func TestNewReevaluateTask(t *testing.T) {
	productID := uuid.New()
	task, err := NewReevaluateTask(ReevaluatePayload{ProductID: productID, Reason: "override changed"})
	require.NoError(t, err)
	assert.Equal(t, TypeReevaluateAlerts, task.Type())

	var payload ReevaluatePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, productID, payload.ProductID)
	assert.Equal(t, uuid.Nil, payload.OrganizationID)
}

func TestHandleReevaluate_InvalidPayload(t *testing.T) {
	handler, _ := newTestHandler(t)

	task := asynq.NewTask(TypeReevaluateAlerts, []byte("invalid json"))
	err := handler.HandleReevaluate(context.Background(), task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
}

func TestHandleReevaluate_UpdatesMeasurements(t *testing.T) {
	handler, setup := newTestHandler(t)
	ctx := testutil.TestContext(t)

	zone := testutil.CreateTestZone(t, setup.DB, setup.Org.ID, "")
	product := testutil.CreateTestProduct(t, setup.DB)
	device := testutil.CreateTestDevice(t, setup.DB, zone, product, "")
	measurement := testutil.CreateTestMeasurement(t, setup.DB, device, 25, nil)

	// The rule is added after the reading was stored.
	rule := testutil.CreateTestAlertRule(t, setup.DB, "High Energy Consumption", models.SeverityHigh, nil, testutil.Float(10))

	// An empty payload is the periodic sweep.
	require.NoError(t, handler.HandleReevaluate(ctx, asynq.NewTask(TypeReevaluateAlerts, nil)))

	var stored models.Measurement
	require.NoError(t, setup.DB.First(&stored, "id = ?", measurement.ID).Error)
	require.NotNil(t, stored.TriggeredAlertID)
	assert.Equal(t, rule.ID, *stored.TriggeredAlertID)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: uuid.NewString()}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) interface{} {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value()
		}
	}
	return nil
}

func TestEnqueueReevaluation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil enqueuer is a no-op", func(t *testing.T) {
		assert.NoError(t, EnqueueReevaluation(ctx, nil, ReevaluatePayload{}))
	})

	t.Run("enqueues task", func(t *testing.T) {
		f := &fakeEnqueuer{}
		require.NoError(t, EnqueueReevaluation(ctx, f, ReevaluatePayload{Reason: "rule updated"}))
		require.Len(t, f.tasks, 1)
		assert.Equal(t, TypeReevaluateAlerts, f.tasks[0].Type())
	})

	t.Run("duplicate is not an error", func(t *testing.T) {
		f := &fakeEnqueuer{err: asynq.ErrDuplicateTask}
		assert.NoError(t, EnqueueReevaluation(ctx, f, ReevaluatePayload{}))
	})

	t.Run("other errors surface", func(t *testing.T) {
		f := &fakeEnqueuer{err: errors.New("redis down")}
		assert.Error(t, EnqueueReevaluation(ctx, f, ReevaluatePayload{}))
	})
}

func TestEnqueueReevaluation_Windows(t *testing.T) {
	ctx := context.Background()
	f := &fakeEnqueuer{}
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, enqueueReevaluation(ctx, f, ReevaluatePayload{Reason: "rule updated"}, base.Add(2*time.Second)))
	require.NoError(t, enqueueReevaluation(ctx, f, ReevaluatePayload{Reason: "rule updated"}, base.Add(20*time.Second)))
	// Lands after the first run may already have started.
	require.NoError(t, enqueueReevaluation(ctx, f, ReevaluatePayload{Reason: "rule updated"}, base.Add(31*time.Second)))
	require.Len(t, f.tasks, 3)

	// Same window, same payload: the uniqueness lock collapses them.
	assert.Equal(t, f.tasks[0].Payload(), f.tasks[1].Payload())
	assert.NotEqual(t, f.tasks[0].Payload(), f.tasks[2].Payload())

	var payload ReevaluatePayload
	require.NoError(t, json.Unmarshal(f.tasks[2].Payload(), &payload))
	assert.Equal(t, base.Add(ReevaluateWindow).Unix(), payload.Window)

	assert.Equal(t, base.Add(ReevaluateWindow), optionValue(f.opts[0], asynq.ProcessAtOpt))
	assert.Equal(t, base.Add(2*ReevaluateWindow), optionValue(f.opts[2], asynq.ProcessAtOpt))
	assert.Equal(t, 2*ReevaluateWindow, optionValue(f.opts[0], asynq.UniqueOpt))
}
