package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/api/dto"
	"github.com/ecoenergy/eco-energy/internal/api/middleware"
	"github.com/ecoenergy/eco-energy/internal/auth"
)

type AuthHandler struct {
	authService auth.Authenticator
	csrf        *middleware.CSRFGuard
	logger      *slog.Logger
}

// NewAuthHandler wires login and logout. csrf may be nil when CSRF
// protection is disabled.
func NewAuthHandler(authService auth.Authenticator, csrf *middleware.CSRFGuard, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, csrf: csrf, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ValidationFailed(errs))
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrInactiveUser):
			writeError(w, http.StatusForbidden, "Account is inactive")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400,
	})

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.UserFromModel(resp.User),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

type CSRFTokenResponse struct {
	Token string `json:"csrf_token"`
}

// CSRFToken hands cookie-authenticated clients the value to send back in
// X-CSRF-Token.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if h.csrf != nil {
		token = h.csrf.Token(r)
	}
	writeJSON(w, http.StatusOK, CSRFTokenResponse{Token: token})
}
