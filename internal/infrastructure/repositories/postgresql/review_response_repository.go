package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"gorm.io/gorm"
)

type ReviewResponseRepository struct {
	db *database.DB
}

func NewReviewResponseRepository(db *database.DB) repositories.ReviewResponseRepository {
	return &ReviewResponseRepository{db: db}
}

// Create stores the response. request_id is unique, so a second response for
// the same request is rejected by the database.
func (r *ReviewResponseRepository) Create(ctx context.Context, response *models.ReviewResponse) error {
	if err := r.db.Conn(ctx).Create(response).Error; err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: review request %s already has a response", apperrors.ErrInvalidState, response.RequestID)
		}
		return storageError("create review response", err)
	}
	return nil
}

func (r *ReviewResponseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewResponse, error) {
	return r.getWhere(ctx, "id = ?", id)
}

func (r *ReviewResponseRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.ReviewResponse, error) {
	return r.getWhere(ctx, "request_id = ?", requestID)
}

func (r *ReviewResponseRepository) getWhere(ctx context.Context, query string, arg uuid.UUID) (*models.ReviewResponse, error) {
	var response models.ReviewResponse
	err := r.db.Conn(ctx).Where(query, arg).First(&response).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("review response")
		}
		return nil, storageError("get review response", err)
	}
	return &response, nil
}

func (r *ReviewResponseRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.ReviewResponse, error) {
	var responses []models.ReviewResponse
	err := r.db.Conn(ctx).Where("subject_id = ?", subjectID).
		Order("created_at ASC").Find(&responses).Error
	if err != nil {
		return nil, storageError("list review responses by subject", err)
	}
	return responses, nil
}

func (r *ReviewResponseRepository) List(ctx context.Context) ([]models.ReviewResponse, error) {
	var responses []models.ReviewResponse
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&responses).Error; err != nil {
		return nil, storageError("list review responses", err)
	}
	return responses, nil
}
