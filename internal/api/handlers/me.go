package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/middleware"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
)

// ProfileService is what the /me endpoints need from the account layer.
type ProfileService interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input auth.ProfileInput) (*models.User, error)
}

type MeHandler struct {
	accounts ProfileService
	logger   *slog.Logger
}

func NewMeHandler(accounts ProfileService, logger *slog.Logger) *MeHandler {
	return &MeHandler{accounts: accounts, logger: logger}
}

// Get handles GET /api/v1/me
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, dto.UserFromModel(user))
}

// Update handles PUT /api/v1/me
func (h *MeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), auth.ProfileInput{
		Name:            strings.TrimSpace(req.Name),
		Phone:           req.Phone,
		Email:           req.Email,
		AvatarURL:       strings.TrimSpace(req.AvatarURL),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, dto.UserFromModel(user))
}
