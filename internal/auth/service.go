package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrEmailTaken           = errors.New("email already registered")
	ErrPhoneTaken           = errors.New("phone already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInactiveUser         = errors.New("user is inactive")
	ErrWrongPassword        = errors.New("current password is incorrect")
	ErrOrganizationNotFound = errors.New("organization not found")
)

type Service struct {
	db  *gorm.DB
	jwt *JWTService
}

func NewService(db *gorm.DB, jwt *JWTService) *Service {
	return &Service{db: db, jwt: jwt}
}

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Username string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type CreateUserInput struct {
	Username       string
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Role           string
	OrganizationID uuid.UUID
	Name           string
	Phone          string
	AvatarURL      string
}

// UpdateUserInput is an administrator edit. Empty Password keeps the old one.
type UpdateUserInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Role           string
	OrganizationID uuid.UUID
	Name           string
	Phone          string
	AvatarURL      string
	IsActive       *bool
}

// ProfileInput is a self-service edit. A non-empty NewPassword requires the
// correct CurrentPassword.
type ProfileInput struct {
	Name            string
	Phone           string
	Email           string
	AvatarURL       string
	CurrentPassword string
	NewPassword     string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	ident := strings.TrimSpace(input.Username)
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Profile.Organization").
		Where("username = ? OR email = ?", ident, normalizeEmail(ident)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	token, err := s.IssueToken(&user)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

// IssueToken signs a token for user. Organization is taken from the profile.
func (s *Service) IssueToken(user *models.User) (string, error) {
	return s.jwt.Issue(IdentityOf(user))
}

// IdentityOf builds the token identity for user.
func IdentityOf(user *models.User) Identity {
	id := Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	if user.Profile != nil {
		id.OrganizationID = user.Profile.OrganizationID
	}
	return id
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return getUser(s.db.WithContext(ctx), id)
}

func getUser(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Preload("Profile.Organization").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(input.Email)
	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(tx, "username = ?", input.Username, uuid.Nil, ErrUserExists); err != nil {
			return err
		}
		if err := ensureUnique(tx, "email = ?", email, uuid.Nil, ErrEmailTaken); err != nil {
			return err
		}
		if err := ensurePhoneFree(tx, input.Phone, uuid.Nil); err != nil {
			return err
		}
		if err := ensureOrganization(tx, input.OrganizationID); err != nil {
			return err
		}

		user = models.User{
			Username:     input.Username,
			Email:        email,
			PasswordHash: hash,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			Role:         input.Role,
			IsActive:     true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("creating user: %w", err)
		}

		profile := models.Profile{
			UserID:         user.ID,
			OrganizationID: input.OrganizationID,
			Name:           strings.TrimSpace(input.Name),
			Phone:          input.Phone,
			AvatarURL:      input.AvatarURL,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, user.ID)
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	email := normalizeEmail(input.Email)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := getUser(tx, id)
		if err != nil {
			return err
		}
		if err := ensureUnique(tx, "email = ?", email, id, ErrEmailTaken); err != nil {
			return err
		}
		if err := ensurePhoneFree(tx, input.Phone, id); err != nil {
			return err
		}
		if err := ensureOrganization(tx, input.OrganizationID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"email":      email,
			"first_name": input.FirstName,
			"last_name":  input.LastName,
			"role":       input.Role,
		}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}
		if input.Password != "" {
			hash, err := HashPassword(input.Password)
			if err != nil {
				return err
			}
			updates["password_hash"] = hash
		}
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating user: %w", err)
		}

		return saveProfile(tx, id, input.OrganizationID, input.Name, input.Phone, input.AvatarURL)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// DeactivateUser soft-deletes an account.
func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivating user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*models.User, error) {
	email := normalizeEmail(input.Email)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		if user.Profile == nil {
			return ErrUserNotFound
		}

		updates := map[string]interface{}{}
		if email != "" && email != user.Email {
			if err := ensureUnique(tx, "email = ?", email, userID, ErrEmailTaken); err != nil {
				return err
			}
			updates["email"] = email
		}
		if input.NewPassword != "" {
			if !CheckPassword(input.CurrentPassword, user.PasswordHash) {
				return ErrWrongPassword
			}
			hash, err := HashPassword(input.NewPassword)
			if err != nil {
				return err
			}
			updates["password_hash"] = hash
		}
		if len(updates) > 0 {
			if err := tx.Model(user).Updates(updates).Error; err != nil {
				return fmt.Errorf("updating user: %w", err)
			}
		}

		if err := ensurePhoneFree(tx, input.Phone, userID); err != nil {
			return err
		}
		return saveProfile(tx, userID, user.Profile.OrganizationID, input.Name, input.Phone, input.AvatarURL)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, userID)
}

func saveProfile(tx *gorm.DB, userID, orgID uuid.UUID, name, phone, avatar string) error {
	profile := models.Profile{
		UserID:         userID,
		OrganizationID: orgID,
		Name:           strings.TrimSpace(name),
		Phone:          phone,
		AvatarURL:      avatar,
	}
	if err := tx.Save(&profile).Error; err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

func ensureUnique(tx *gorm.DB, cond string, value interface{}, exceptID uuid.UUID, conflict error) error {
	q := tx.Model(&models.User{}).Where(cond, value)
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflict
	}
	return nil
}

func ensurePhoneFree(tx *gorm.DB, phone string, exceptUserID uuid.UUID) error {
	q := tx.Model(&models.Profile{}).Where("phone = ?", phone)
	if exceptUserID != uuid.Nil {
		q = q.Where("user_id <> ?", exceptUserID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrPhoneTaken
	}
	return nil
}

func ensureOrganization(tx *gorm.DB, id uuid.UUID) error {
	var n int64
	if err := tx.Model(&models.Organization{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}
