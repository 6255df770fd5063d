package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"gorm.io/gorm"
)

type AgreementRepository struct {
	db *database.DB
}

func NewAgreementRepository(db *database.DB) repositories.AgreementRepository {
	return &AgreementRepository{db: db}
}

func (r *AgreementRepository) Create(ctx context.Context, agreement *models.Agreement) error {
	if err := r.db.Conn(ctx).Create(agreement).Error; err != nil {
		return storageError("create agreement", err)
	}
	return nil
}

func (r *AgreementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	err := r.db.Conn(ctx).Where("id = ?", id).First(&agreement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("agreement")
		}
		return nil, storageError("get agreement", err)
	}
	return &agreement, nil
}

func (r *AgreementRepository) Update(ctx context.Context, agreement *models.Agreement) error {
	result := r.db.Conn(ctx).Save(agreement)
	if result.Error != nil {
		return storageError("update agreement", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("agreement")
	}
	return nil
}

// FindBySourceDocument misses on the first reconcile of every scan, so it
// avoids First and the record-not-found log line that comes with it.
func (r *AgreementRepository) FindBySourceDocument(ctx context.Context, scanID uuid.UUID) (*models.Agreement, error) {
	var agreements []models.Agreement
	result := r.db.Conn(ctx).Where("source_document_ref = ?", scanID).
		Order("created_at ASC").Limit(1).Find(&agreements)
	if result.Error != nil {
		return nil, storageError("find agreement by source document", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFound("agreement")
	}
	return &agreements[0], nil
}

func (r *AgreementRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Agreement, error) {
	var agreements []models.Agreement
	err := r.db.Conn(ctx).Where("property_id = ?", propertyID).
		Order("created_at DESC").Find(&agreements).Error
	if err != nil {
		return nil, storageError("list agreements by property", err)
	}
	return agreements, nil
}
