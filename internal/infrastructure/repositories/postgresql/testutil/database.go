package testutil

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

// TestDB wraps the database for testing
type TestDB struct {
	*database.DB
}

// NewTestDB creates a new test database connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	// Use DATABASE_URL_TEST if available (for Docker), otherwise SQLite
	databaseURL := os.Getenv("DATABASE_URL_TEST")
	if databaseURL == "" {
		// Each test gets its own named in-memory database
		databaseURL = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	} else {
		t.Logf("Using PostgreSQL database for testing: %s", databaseURL)
	}

	db, err := database.New(databaseURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &TestDB{DB: db}
}

// Cleanup closes the test database
func (db *TestDB) Cleanup(t *testing.T) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("Failed to close test database: %v", err)
	}
}

// CreateTestUser creates a test user with the given role
func (db *TestDB) CreateTestUser(t *testing.T, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		ID:    uuid.New(),
		Name:  "Test User",
		Email: fmt.Sprintf("test-%s@example.com", uuid.New().String()[:8]),
		Role:  role,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// CreateTestProperty creates a property owned by owner
func (db *TestDB) CreateTestProperty(t *testing.T, owner *models.User) *models.Property {
	t.Helper()

	property := &models.Property{
		ID:              uuid.New(),
		OwnerID:         owner.ID,
		Address:         "1 Test Street",
		Details:         models.StringMap{},
		FieldConfidence: models.ConfidenceMap{},
		FieldSources:    models.StringMap{},
	}

	if err := db.Create(property).Error; err != nil {
		t.Fatalf("Failed to create test property: %v", err)
	}

	return property
}

// CreateTestReviewRequest creates a pending request from requester to reviewer
func (db *TestDB) CreateTestReviewRequest(t *testing.T, requester, reviewer *models.User) *models.ReviewRequest {
	t.Helper()

	request := &models.ReviewRequest{
		ID:          uuid.New(),
		RequesterID: requester.ID,
		ReviewerID:  &reviewer.ID,
		RequestType: models.ReviewTypeTenant,
		Message:     "Please review",
		Status:      models.ReviewPending,
	}

	if err := db.Create(request).Error; err != nil {
		t.Fatalf("Failed to create test review request: %v", err)
	}

	return request
}
