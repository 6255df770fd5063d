package postgresql

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/internal/infrastructure/repositories/postgresql/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentScanRepository_CreateDefaultsToPending(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentScanRepository(db.DB)
	ctx := context.Background()
	user := db.CreateTestUser(t, models.UserRoleLandlord)

	scan := &models.DocumentScan{UserID: user.ID, DocumentClass: models.DocClassRentalAgreement}
	require.NoError(t, repo.Create(ctx, scan))

	found, err := repo.GetByID(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanPending, found.Status)
	assert.False(t, found.IsFinal())
}

func TestDocumentScanRepository_Finalize(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentScanRepository(db.DB)
	ctx := context.Background()
	user := db.CreateTestUser(t, models.UserRoleLandlord)

	scan := &models.DocumentScan{UserID: user.ID, DocumentClass: models.DocClassRentalAgreement}
	require.NoError(t, repo.Create(ctx, scan))

	scan.Status = models.ScanCompleted
	scan.ExtractedFields = models.StringMap{"monthly_rent": "$1,500.00"}
	scan.FieldConfidence = models.ConfidenceMap{"monthly_rent": 0.92}
	require.NoError(t, repo.Finalize(ctx, scan))

	found, err := repo.GetByID(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanCompleted, found.Status)
	assert.Equal(t, "$1,500.00", found.ExtractedFields["monthly_rent"])
	assert.InDelta(t, 0.92, found.FieldConfidence.Get("monthly_rent"), 1e-9)
	require.NotNil(t, found.CompletedAt)

	// A finalized scan is immutable
	scan.Status = models.ScanFailed
	scan.FailureReason = "late failure"
	err = repo.Finalize(ctx, scan)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	found, err = repo.GetByID(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanCompleted, found.Status)
	assert.Empty(t, found.FailureReason)
}

func TestDocumentScanRepository_FinalizeRejectsPendingAndMissing(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewDocumentScanRepository(db.DB)
	ctx := context.Background()

	err := repo.Finalize(ctx, &models.DocumentScan{ID: uuid.New(), Status: models.ScanPending})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	err = repo.Finalize(ctx, &models.DocumentScan{ID: uuid.New(), Status: models.ScanFailed})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
