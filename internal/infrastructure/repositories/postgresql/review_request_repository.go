package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"gorm.io/gorm"
)

type ReviewRequestRepository struct {
	db *database.DB
}

func NewReviewRequestRepository(db *database.DB) repositories.ReviewRequestRepository {
	return &ReviewRequestRepository{db: db}
}

func (r *ReviewRequestRepository) Create(ctx context.Context, request *models.ReviewRequest) error {
	request.ReviewerEmail = normalizeEmail(request.ReviewerEmail)
	if err := r.db.Conn(ctx).Create(request).Error; err != nil {
		return storageError("create review request", err)
	}
	return nil
}

func (r *ReviewRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error) {
	var request models.ReviewRequest
	err := r.db.Conn(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("review request")
		}
		return nil, storageError("get review request", err)
	}
	return &request, nil
}

func (r *ReviewRequestRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.ReviewStatus) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to != models.ReviewPending {
		updates["resolved_at"] = time.Now().UTC()
	}

	result := r.db.Conn(ctx).Model(&models.ReviewRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, storageError("update review request status", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *ReviewRequestRepository) BindReviewer(ctx context.Context, id, reviewerID uuid.UUID) error {
	result := r.db.Conn(ctx).Model(&models.ReviewRequest{}).
		Where("id = ? AND status = ? AND reviewer_id IS NULL", id, models.ReviewPending).
		Update("reviewer_id", reviewerID)
	if result.Error != nil {
		return storageError("bind reviewer", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: review request %s is not an open invitation", apperrors.ErrInvalidState, id)
	}
	return nil
}

func (r *ReviewRequestRepository) ListPendingByEmail(ctx context.Context, email string) ([]models.ReviewRequest, error) {
	var requests []models.ReviewRequest
	err := r.db.Conn(ctx).
		Where("reviewer_email = ? AND status = ? AND reviewer_id IS NULL", normalizeEmail(email), models.ReviewPending).
		Order("created_at ASC").Find(&requests).Error
	if err != nil {
		return nil, storageError("list pending invitations", err)
	}
	return requests, nil
}

func (r *ReviewRequestRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.ReviewRequest, error) {
	var requests []models.ReviewRequest
	err := r.db.Conn(ctx).
		Where("status = ? AND created_at < ?", models.ReviewPending, cutoff).
		Order("created_at ASC").Find(&requests).Error
	if err != nil {
		return nil, storageError("list stale review requests", err)
	}
	return requests, nil
}

func (r *ReviewRequestRepository) ListFulfilledForSubject(ctx context.Context, subjectID uuid.UUID) ([]models.ReviewRequest, error) {
	var requests []models.ReviewRequest
	err := r.db.Conn(ctx).
		Where("requester_id = ? AND status = ?", subjectID, models.ReviewFulfilled).
		Order("resolved_at ASC").Find(&requests).Error
	if err != nil {
		return nil, storageError("list fulfilled review requests", err)
	}
	return requests, nil
}

func (r *ReviewRequestRepository) List(ctx context.Context) ([]models.ReviewRequest, error) {
	var requests []models.ReviewRequest
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, storageError("list review requests", err)
	}
	return requests, nil
}
