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

func TestAgreementRepository_FindBySourceDocument(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewAgreementRepository(db.DB)
	ctx := context.Background()
	landlord := db.CreateTestUser(t, models.UserRoleLandlord)

	scanID := uuid.New()
	_, err := repo.FindBySourceDocument(ctx, scanID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	agreement := &models.Agreement{LandlordID: &landlord.ID, SourceDocumentRef: &scanID}
	require.NoError(t, repo.Create(ctx, agreement))

	found, err := repo.FindBySourceDocument(ctx, scanID)
	require.NoError(t, err)
	assert.Equal(t, agreement.ID, found.ID)
	assert.True(t, found.HasParty(landlord.ID))
	assert.False(t, found.HasParty(uuid.New()))
}
