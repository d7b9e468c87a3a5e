package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeReevaluateAlerts = "alerts:reevaluate"
)

// ReevaluateWindow is how long rule edits are batched before one
// re-evaluation runs.
const ReevaluateWindow = 30 * time.Second

// ReevaluatePayload narrows a re-evaluation run. Zero IDs mean all
// products or all organizations; an empty payload sweeps everything.
// Window is the start of the batching window, in unix seconds.
type ReevaluatePayload struct {
	ProductID      uuid.UUID `json:"product_id,omitempty"`
	OrganizationID uuid.UUID `json:"organization_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Window         int64     `json:"window,omitempty"`
}

func NewReevaluateTask(payload ReevaluatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReevaluateAlerts, data,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}

// Enqueuer is the part of *asynq.Client used by the API.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueReevaluation schedules a run at the end of the current
// ReevaluateWindow. Edits inside one window share a payload and collapse into
// a single pending task that has not started yet, so an edit is never dropped
// in favour of a run that already loaded the old rules. A nil enqueuer is a
// no-op.
func EnqueueReevaluation(ctx context.Context, e Enqueuer, payload ReevaluatePayload) error {
	return enqueueReevaluation(ctx, e, payload, time.Now())
}

func enqueueReevaluation(ctx context.Context, e Enqueuer, payload ReevaluatePayload, now time.Time) error {
	if e == nil {
		return nil
	}
	start := now.Truncate(ReevaluateWindow)
	payload.Window = start.Unix()

	task, err := NewReevaluateTask(payload)
	if err != nil {
		return err
	}
	_, err = e.EnqueueContext(ctx, task,
		asynq.ProcessAt(start.Add(ReevaluateWindow)),
		asynq.Unique(2*ReevaluateWindow),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}
