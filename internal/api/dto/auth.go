package dto

import (
	"strings"

	"github.com/ecoenergy/eco-energy/internal/api/validation"
	"github.com/ecoenergy/eco-energy/internal/database/models"
)

// LoginRequest accepts a username or an email in Username.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() validation.Errors {
	errors := validation.Errors{}

	if strings.TrimSpace(r.Username) == "" {
		errors.Add("username", "Username is required")
	}
	if r.Password == "" {
		errors.Add("password", "Password is required")
	}

	return errors
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Role           string `json:"role"`
	IsActive       bool   `json:"is_active"`
	Name           string `json:"name,omitempty"`
	Phone          string `json:"phone,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	OrgName        string `json:"org_name,omitempty"`
}

func UserFromModel(u *models.User) UserDTO {
	resp := UserDTO{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		IsActive:  u.IsActive,
	}
	if p := u.Profile; p != nil {
		resp.Name = p.Name
		resp.Phone = p.Phone
		resp.AvatarURL = p.AvatarURL
		resp.OrganizationID = p.OrganizationID.String()
		if p.Organization != nil {
			resp.OrgName = p.Organization.Name
		}
	}
	return resp
}

// UserRequest is the administrator form for creating or editing a user.
// Password is required on create and optional on edit.
type UserRequest struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	Password             string `json:"password,omitempty"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Role                 string `json:"role"`
	OrganizationID       string `json:"organization_id"`
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	AvatarURL            string `json:"avatar_url,omitempty"`
	IsActive             *bool  `json:"is_active,omitempty"`
}

// Validate normalizes Phone in place and reports field errors.
func (r *UserRequest) Validate(creating bool) validation.Errors {
	errors := validation.Errors{}

	if creating {
		if !validation.IsValidUsername(r.Username) {
			errors.Add("username", "Username must be at least 3 characters of letters, digits or underscores")
		}
		if r.Password == "" {
			errors.Add("password", "Password is required")
		}
	}
	if r.Password != "" {
		if ok, msg := validation.IsValidPassword(r.Password); !ok {
			errors.Add("password", msg)
		} else if r.Password != r.PasswordConfirmation {
			errors.Add("password_confirmation", "Passwords do not match")
		}
	}
	if !validation.IsValidEmail(strings.TrimSpace(r.Email)) {
		errors.Add("email", "Invalid email address")
	}
	if !models.ValidRole(r.Role) {
		errors.Add("role", "Role must be global_admin, org_admin or member")
	}
	if !validation.IsValidUUID(r.OrganizationID) {
		errors.Add("organization_id", "Organization is required")
	}
	r.validateProfile(errors)

	return errors
}

func (r *UserRequest) validateProfile(errors validation.Errors) {
	if !validation.IsValidPersonName(r.Name) {
		errors.Add("name", "Name must be 2 to 100 letters or spaces")
	}
	phone, ok := validation.NormalizePhone(r.Phone)
	if !ok {
		errors.Add("phone", "Phone must have exactly 9 digits")
	}
	r.Phone = phone
}

// ProfileUpdateRequest is the self-service edit behind /me.
type ProfileUpdateRequest struct {
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	Email                string `json:"email,omitempty"`
	AvatarURL            string `json:"avatar_url,omitempty"`
	CurrentPassword      string `json:"current_password,omitempty"`
	NewPassword          string `json:"new_password,omitempty"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
}

// Validate normalizes Phone in place and reports field errors.
func (r *ProfileUpdateRequest) Validate() validation.Errors {
	errors := validation.Errors{}

	if !validation.IsValidPersonName(r.Name) {
		errors.Add("name", "Name must be 2 to 100 letters or spaces")
	}
	phone, ok := validation.NormalizePhone(r.Phone)
	if !ok {
		errors.Add("phone", "Phone must have exactly 9 digits")
	}
	r.Phone = phone
	if r.Email != "" && !validation.IsValidEmail(strings.TrimSpace(r.Email)) {
		errors.Add("email", "Invalid email address")
	}
	if r.NewPassword != "" {
		if r.CurrentPassword == "" {
			errors.Add("current_password", "Current password is required to change it")
		}
		if ok, msg := validation.IsValidPassword(r.NewPassword); !ok {
			errors.Add("new_password", msg)
		} else if r.NewPassword != r.PasswordConfirmation {
			errors.Add("password_confirmation", "Passwords do not match")
		}
	}

	return errors
}
