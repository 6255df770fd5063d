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

type DocumentScanRepository struct {
	db *database.DB
}

func NewDocumentScanRepository(db *database.DB) repositories.DocumentScanRepository {
	return &DocumentScanRepository{db: db}
}

func (r *DocumentScanRepository) Create(ctx context.Context, scan *models.DocumentScan) error {
	if scan.Status == "" {
		scan.Status = models.ScanPending
	}
	if err := r.db.Conn(ctx).Create(scan).Error; err != nil {
		return storageError("create document scan", err)
	}
	return nil
}

func (r *DocumentScanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentScan, error) {
	var scan models.DocumentScan
	err := r.db.Conn(ctx).Where("id = ?", id).First(&scan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("document scan")
		}
		return nil, storageError("get document scan", err)
	}
	return &scan, nil
}

// Finalize writes the terminal state of a scan. The update is conditional on
// the row still being pending so a scan is finalized at most once.
func (r *DocumentScanRepository) Finalize(ctx context.Context, scan *models.DocumentScan) error {
	if !scan.IsFinal() {
		return fmt.Errorf("%w: scan must be completed or failed to finalize", apperrors.ErrInvalidState)
	}
	if scan.CompletedAt == nil {
		now := time.Now().UTC()
		scan.CompletedAt = &now
	}

	result := r.db.Conn(ctx).Model(&models.DocumentScan{}).
		Where("id = ? AND status = ?", scan.ID, models.ScanPending).
		Updates(map[string]interface{}{
			"status":           scan.Status,
			"extracted_fields": scan.ExtractedFields,
			"field_confidence": scan.FieldConfidence,
			"property_id":      scan.PropertyID,
			"agreement_id":     scan.AgreementID,
			"failure_reason":   scan.FailureReason,
			"needs_review":     scan.NeedsReview,
			"completed_at":     scan.CompletedAt,
		})
	if result.Error != nil {
		return storageError("finalize document scan", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, scan.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: document scan %s is already finalized", apperrors.ErrInvalidState, scan.ID)
	}
	return nil
}

func (r *DocumentScanRepository) List(ctx context.Context) ([]models.DocumentScan, error) {
	var scans []models.DocumentScan
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&scans).Error; err != nil {
		return nil, storageError("list document scans", err)
	}
	return scans, nil
}
