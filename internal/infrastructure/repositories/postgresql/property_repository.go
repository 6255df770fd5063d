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

type PropertyRepository struct {
	db *database.DB
}

func NewPropertyRepository(db *database.DB) repositories.PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Create(ctx context.Context, property *models.Property) error {
	if err := r.db.Conn(ctx).Create(property).Error; err != nil {
		return storageError("create property", err)
	}
	return nil
}

func (r *PropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := r.db.Conn(ctx).Where("id = ?", id).First(&property).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("property")
		}
		return nil, storageError("get property", err)
	}
	return &property, nil
}

func (r *PropertyRepository) Update(ctx context.Context, property *models.Property) error {
	result := r.db.Conn(ctx).Save(property)
	if result.Error != nil {
		return storageError("update property", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("property")
	}
	return nil
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Property, error) {
	var properties []models.Property
	err := r.db.Conn(ctx).Where("owner_id = ?", ownerID).
		Order("created_at DESC").Find(&properties).Error
	if err != nil {
		return nil, storageError("list properties by owner", err)
	}
	return properties, nil
}
