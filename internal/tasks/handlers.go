package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/hibiken/asynq"
)

type Handler struct {
	alerts *alerts.Service
	logger *slog.Logger
}

func NewHandler(alertService *alerts.Service, logger *slog.Logger) *Handler {
	return &Handler{
		alerts: alertService,
		logger: logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeReevaluateAlerts, h.HandleReevaluate)
}

func (h *Handler) HandleReevaluate(ctx context.Context, t *asynq.Task) error {
	var payload ReevaluatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	h.logger.Info("starting alert re-evaluation",
		"product_id", payload.ProductID,
		"org_id", payload.OrganizationID,
		"reason", payload.Reason,
	)

	changed, err := h.alerts.Reevaluate(ctx, alerts.ReevaluateFilter{
		ProductID:      payload.ProductID,
		OrganizationID: payload.OrganizationID,
	})
	if err != nil {
		h.logger.Error("alert re-evaluation failed", "error", err, "changed", changed)
		return err
	}

	h.logger.Info("alert re-evaluation completed", "changed", changed)
	return nil
}
