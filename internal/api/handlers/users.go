package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/middleware"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserAccounts is the account layer used by the user endpoints.
type UserAccounts interface {
	auth.AccountManager
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type UserHandler struct {
	db       *gorm.DB
	accounts UserAccounts
	logger   *slog.Logger
}

func NewUserHandler(db *gorm.DB, accounts UserAccounts, logger *slog.Logger) *UserHandler {
	return &UserHandler{db: db, accounts: accounts, logger: logger}
}

var userSorts = map[string]string{
	"name":         "profiles.name",
	"username":     "users.username",
	"email":        "users.email",
	"phone":        "profiles.phone",
	"organization": "organizations.name",
	"active":       "users.is_active",
	"created_at":   "users.created_at",
}

// List handles GET /api/v1/users. Org admins see the users of their own
// organization only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := access.FromContext(r.Context())
	p := dto.ParseListParams(r)

	query := h.db.WithContext(r.Context()).Model(&models.User{}).
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Joins("LEFT JOIN organizations ON organizations.id = profiles.organization_id")
	query = scope.Filter(query, "profiles.organization_id")
	query = activeFilter(query, p, "users.is_active")
	if orgID := parseOptionalID(r.URL.Query().Get("organization_id")); orgID != uuid.Nil {
		query = query.Where("profiles.organization_id = ?", orgID)
	}
	if role := r.URL.Query().Get("role"); models.ValidRole(role) {
		query = query.Where("users.role = ?", role)
	}
	query = search(query, p.Query,
		"profiles.name", "users.username", "users.email", "profiles.phone", "organizations.name")

	var users []models.User
	total, err := paginate(query, p, p.OrderBy(userSorts, "users.username"), &users, "Profile.Organization")
	if err != nil {
		h.logger.Error("listing users", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	response := make([]dto.UserDTO, len(users))
	for i := range users {
		response[i] = dto.UserFromModel(&users[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, p.PaginationParams))
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	scope := access.FromContext(r.Context())

	user, err := h.accounts.GetUserByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	if !scope.IsGlobal() && (user.Profile == nil || !scope.Includes(user.Profile.OrganizationID)) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, dto.UserFromModel(user))
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.UserRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(true); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	user, err := h.accounts.CreateUser(r.Context(), auth.CreateUserInput{
		Username:       strings.TrimSpace(req.Username),
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Role:           req.Role,
		OrganizationID: parseOptionalID(req.OrganizationID),
		Name:           req.Name,
		Phone:          req.Phone,
		AvatarURL:      strings.TrimSpace(req.AvatarURL),
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}

	h.logger.Info("user created", "user_id", user.ID, "role", user.Role, "by", middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusCreated, dto.UserFromModel(user))
}

// Update handles PUT /api/v1/users/{id}. Usernames cannot be changed.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UserRequest
	if !decode(w, r, &req) {
		return
	}
	if errs := req.Validate(false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	user, err := h.accounts.UpdateUser(r.Context(), id, auth.UpdateUserInput{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Role:           req.Role,
		OrganizationID: parseOptionalID(req.OrganizationID),
		Name:           req.Name,
		Phone:          req.Phone,
		AvatarURL:      strings.TrimSpace(req.AvatarURL),
		IsActive:       req.IsActive,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, dto.UserFromModel(user))
}

// Delete handles DELETE /api/v1/users/{id}. Administrators cannot
// deactivate their own account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if id == middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusBadRequest, dto.ActionResponse{Success: false, Message: "You cannot deactivate your own account"})
		return
	}
	err := h.accounts.DeactivateUser(r.Context(), id)
	writeDeactivated(w, h.logger, err, "User")
}
