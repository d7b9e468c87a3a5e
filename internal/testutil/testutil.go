package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the password of every fixture user.
const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Every pooled connection would get its own empty :memory: database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

func shortID() string {
	return uuid.New().String()[:8]
}

// Float returns a pointer to v, for optional thresholds and ratings.
func Float(v float64) *float64 {
	return &v
}

// CreateTestOrg creates a test organization
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name:     gofakeit.Company() + " " + shortID(),
		IsActive: true,
	}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateTestUser creates an active user with a profile in org. A nil org
// leaves the user without a profile.
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     "user_" + shortID(),
		Email:        "test-" + shortID() + "@example.com",
		PasswordHash: hash,
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	if org != nil {
		profile := &models.Profile{
			UserID:         user.ID,
			OrganizationID: org.ID,
			Name:           "Test User",
			Phone:          gofakeit.Numerify("9########"),
		}
		if err := db.Create(profile).Error; err != nil {
			t.Fatalf("failed to create test profile: %v", err)
		}
		profile.Organization = org
		user.Profile = profile
	}

	return user
}

func CreateTestZone(t *testing.T, db *gorm.DB, orgID uuid.UUID, name string) *models.Zone {
	t.Helper()

	if name == "" {
		name = "Zone " + shortID()
	}
	zone := &models.Zone{OrganizationID: orgID, Name: name, Status: models.StatusActive}
	if err := db.Create(zone).Error; err != nil {
		t.Fatalf("failed to create test zone: %v", err)
	}
	return zone
}

func CreateTestCategory(t *testing.T, db *gorm.DB) *models.Category {
	t.Helper()

	category := &models.Category{Name: gofakeit.ProductCategory() + " " + shortID(), Status: models.StatusActive}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestProduct creates an ACTIVE product in a fresh category.
func CreateTestProduct(t *testing.T, db *gorm.DB) *models.Product {
	t.Helper()

	category := CreateTestCategory(t, db)
	product := &models.Product{
		CategoryID:   category.ID,
		Name:         "Product " + shortID(),
		SKU:          fmt.Sprintf("SKU-%06d", gofakeit.Number(0, 999999)) + "-" + shortUpper(),
		Manufacturer: gofakeit.Company(),
		ModelName:    gofakeit.Word(),
		Status:       models.StatusActive,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("failed to create test product: %v", err)
	}
	product.Category = category
	return product
}

func shortUpper() string {
	return fmt.Sprintf("%X", uuid.New().ID())
}

// CreateTestDevice creates an ACTIVE device in zone, built from product.
func CreateTestDevice(t *testing.T, db *gorm.DB, zone *models.Zone, product *models.Product, name string) *models.Device {
	t.Helper()

	if name == "" {
		name = "Device " + shortID()
	}
	device := &models.Device{
		OrganizationID: zone.OrganizationID,
		ZoneID:         zone.ID,
		ProductID:      product.ID,
		Name:           name,
		SerialNumber:   gofakeit.Numerify("SN-########"),
		MaxPowerW:      500,
		Status:         models.StatusActive,
	}
	if err := db.Create(device).Error; err != nil {
		t.Fatalf("failed to create test device: %v", err)
	}
	return device
}

func CreateTestAlertRule(t *testing.T, db *gorm.DB, name string, severity models.Severity, min, max *float64) *models.AlertRule {
	t.Helper()

	rule := &models.AlertRule{
		Name:                name,
		Severity:            severity,
		Unit:                models.UnitKWh,
		DefaultMinThreshold: min,
		DefaultMaxThreshold: max,
		Status:              models.StatusActive,
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create test alert rule: %v", err)
	}
	return rule
}

func CreateTestMeasurement(t *testing.T, db *gorm.DB, device *models.Device, energy float64, alertID *uuid.UUID) *models.Measurement {
	t.Helper()

	m := &models.Measurement{
		OrganizationID:   device.OrganizationID,
		DeviceID:         device.ID,
		EnergyKWh:        energy,
		MeasuredAt:       time.Now().UTC(),
		TriggeredAlertID: alertID,
		Status:           models.StatusActive,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("failed to create test measurement: %v", err)
	}
	return m
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.Issue(auth.IdentityOf(user))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies. User is an org admin of
// Org; Admin is a global admin; Member is a read-only member of Org.
type TestSetup struct {
	DB          *gorm.DB
	JWTService  *auth.JWTService
	Org         *models.Organization
	User        *models.User
	Token       string
	Admin       *models.User
	AdminToken  string
	Member      *models.User
	MemberToken string
}

// NewTestContext creates a complete test setup with DB, org, users, and tokens
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	user := CreateTestUser(t, db, org, models.RoleOrgAdmin)
	admin := CreateTestUser(t, db, org, models.RoleGlobalAdmin)
	member := CreateTestUser(t, db, org, models.RoleMember)

	return &TestSetup{
		DB:          db,
		JWTService:  jwtService,
		Org:         org,
		User:        user,
		Token:       GenerateTestToken(t, jwtService, user),
		Admin:       admin,
		AdminToken:  GenerateTestToken(t, jwtService, admin),
		Member:      member,
		MemberToken: GenerateTestToken(t, jwtService, member),
	}
}

// TokenFor creates a user with role in org and returns it with a token.
func (ts *TestSetup) TokenFor(t *testing.T, org *models.Organization, role string) (*models.User, string) {
	t.Helper()
	user := CreateTestUser(t, ts.DB, org, role)
	return user, GenerateTestToken(t, ts.JWTService, user)
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
