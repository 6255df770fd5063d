package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

// Core repository interfaces for clean architecture.
//
// Implementations return errors wrapping apperrors.ErrNotFound for missing
// rows and apperrors.ErrDependencyFailure for storage failures.

// Transactor runs a unit of work atomically. Repositories called with the
// ctx handed to fn participate in the same transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type PropertyRepository interface {
	Create(ctx context.Context, property *models.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	Update(ctx context.Context, property *models.Property) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Property, error)
}

type AgreementRepository interface {
	Create(ctx context.Context, agreement *models.Agreement) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	Update(ctx context.Context, agreement *models.Agreement) error
	// FindBySourceDocument returns the agreement created from a scan.
	FindBySourceDocument(ctx context.Context, scanID uuid.UUID) (*models.Agreement, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Agreement, error)
}

type DocumentScanRepository interface {
	Create(ctx context.Context, scan *models.DocumentScan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentScan, error)
	// Finalize moves a pending scan to completed or failed. It fails with
	// ErrInvalidState when the scan has already been finalized.
	Finalize(ctx context.Context, scan *models.DocumentScan) error
	List(ctx context.Context) ([]models.DocumentScan, error)
}

type ReviewRequestRepository interface {
	Create(ctx context.Context, request *models.ReviewRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error)
	// TransitionStatus moves the request from one status to another and
	// reports whether the row was in the expected status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.ReviewStatus) (bool, error)
	// BindReviewer sets the reviewer on an unresolved pending invitation.
	BindReviewer(ctx context.Context, id, reviewerID uuid.UUID) error
	ListPendingByEmail(ctx context.Context, email string) ([]models.ReviewRequest, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.ReviewRequest, error)
	ListFulfilledForSubject(ctx context.Context, subjectID uuid.UUID) ([]models.ReviewRequest, error)
	List(ctx context.Context) ([]models.ReviewRequest, error)
}

type ReviewResponseRepository interface {
	Create(ctx context.Context, response *models.ReviewResponse) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewResponse, error)
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ReviewResponse, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.ReviewResponse, error)
	List(ctx context.Context) ([]models.ReviewResponse, error)
}

type ProfileRepository interface {
	// GetOrInit returns the stored profile or an empty one for userID.
	GetOrInit(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Save(ctx context.Context, profile *models.Profile) error
}

// ActivityRepository exposes the ancillary collections shown in the
// role-scoped view.
type ActivityRepository interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
	ListIssues(ctx context.Context) ([]models.Issue, error)
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	ListChatMessages(ctx context.Context) ([]models.ChatMessage, error)
}
