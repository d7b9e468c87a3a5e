package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecoenergy/eco-energy/internal/access"
	"github.com/ecoenergy/eco-energy/internal/api/validation"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type adminOptions struct {
	organization string
	username     string
	email        string
	password     string
	name         string
	phone        string
}

var adminOpts adminOptions

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a global administrator",
	Long: `Create a global administrator attached to the given organization.
The organization is created when no organization with that name exists.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := adminOpts.validate(); err != nil {
			return err
		}

		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		ctx := cmd.Context()
		org, err := findOrCreateOrganization(ctx, db, adminOpts.organization)
		if err != nil {
			return err
		}

		authService := auth.NewService(db, auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry()))
		phone, _ := validation.NormalizePhone(adminOpts.phone)
		user, err := authService.CreateUser(ctx, auth.CreateUserInput{
			Username:       adminOpts.username,
			Email:          adminOpts.email,
			Password:       adminOpts.password,
			Role:           models.RoleGlobalAdmin,
			OrganizationID: org.ID,
			Name:           adminOpts.name,
			Phone:          phone,
		})
		if err != nil {
			return fmt.Errorf("creating administrator: %w", err)
		}

		logger.Info("global administrator created",
			"user_id", user.ID,
			"username", user.Username,
			"organization", org.Name,
		)
		return nil
	},
}

func (o adminOptions) validate() error {
	errs := validation.Errors{}
	if !validation.IsValidUsername(o.username) {
		errs.Add("username", "Letters, digits and underscores, at least 3 characters")
	}
	if !validation.IsValidEmail(o.email) {
		errs.Add("email", "Invalid email address")
	}
	if ok, msg := validation.IsValidPassword(o.password); !ok {
		errs.Add("password", msg)
	}
	if !validation.IsValidPersonName(o.name) {
		errs.Add("name", "Letters and spaces only, 2 to 100 characters")
	}
	if _, ok := validation.NormalizePhone(o.phone); !ok {
		errs.Add("phone", "Phone must have exactly 9 digits")
	}
	if !validation.LengthBetween(strings.TrimSpace(o.organization), 2, 100) {
		errs.Add("organization", "Name must be 2 to 100 characters")
	}
	return errs.Err()
}

func findOrCreateOrganization(ctx context.Context, db *gorm.DB, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	var org models.Organization
	err := db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&org).Error
	if err == nil {
		if !org.IsActive {
			return nil, fmt.Errorf("organization %q is inactive", org.Name)
		}
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up organization: %w", err)
	}

	created, err := inventory.NewService(db, logger).
		CreateOrganization(ctx, access.Scope{Role: models.RoleGlobalAdmin, All: true}, inventory.OrganizationInput{Name: name})
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	logger.Info("organization created", "organization_id", created.ID, "name", created.Name)
	return created, nil
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminOpts.organization, "organization", "", "organization name (created if missing)")
	f.StringVar(&adminOpts.username, "username", "", "login username")
	f.StringVar(&adminOpts.email, "email", "", "email address")
	f.StringVar(&adminOpts.password, "password", "", "initial password")
	f.StringVar(&adminOpts.name, "name", "", "display name")
	f.StringVar(&adminOpts.phone, "phone", "", "nine-digit phone number")
	for _, name := range []string{"organization", "username", "email", "password", "name", "phone"} {
		_ = createAdminCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(createAdminCmd)
}
