package postgresql

import (
	"context"
	"fmt"

	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Transactor    repositories.Transactor
	UserRepo      repositories.UserRepository
	PropertyRepo  repositories.PropertyRepository
	AgreementRepo repositories.AgreementRepository
	ScanRepo      repositories.DocumentScanRepository
	RequestRepo   repositories.ReviewRequestRepository
	ResponseRepo  repositories.ReviewResponseRepository
	ProfileRepo   repositories.ProfileRepository
	ActivityRepo  repositories.ActivityRepository

	// Internal reference to database for health checks
	db *database.DB
}

// NewRepositories creates a new repositories container
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Transactor:    db,
		UserRepo:      NewUserRepository(db),
		PropertyRepo:  NewPropertyRepository(db),
		AgreementRepo: NewAgreementRepository(db),
		ScanRepo:      NewDocumentScanRepository(db),
		RequestRepo:   NewReviewRequestRepository(db),
		ResponseRepo:  NewReviewResponseRepository(db),
		ProfileRepo:   NewProfileRepository(db),
		ActivityRepo:  NewActivityRepository(db),
		db:            db,
	}
}

// HealthCheck verifies database connectivity
func (r *Repositories) HealthCheck(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
