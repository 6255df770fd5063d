package postgresql

import (
	"context"
	"testing"

	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/internal/infrastructure/repositories/postgresql/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResponse(request *models.ReviewRequest) *models.ReviewResponse {
	response := &models.ReviewResponse{
		RequestID:        request.ID,
		ReviewerID:       *request.ReviewerID,
		SubjectID:        request.RequesterID,
		OverallRating:    4,
		AIOverallScore:   7.5,
		AIRiskAssessment: models.RiskLow,
	}
	ratings := models.CategoryRatings{}
	for _, category := range models.AllCategories {
		ratings[category] = 4
	}
	response.SetRatings(ratings)
	return response
}

func TestReviewResponseRepository_OneResponsePerRequest(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewReviewResponseRepository(db.DB)
	ctx := context.Background()

	requester := db.CreateTestUser(t, models.UserRoleTenant)
	reviewer := db.CreateTestUser(t, models.UserRoleLandlord)
	request := db.CreateTestReviewRequest(t, requester, reviewer)

	first := newTestResponse(request)
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, newTestResponse(request))
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	found, err := repo.GetByRequestID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, 4, found.Ratings()[models.CategoryFairness])

	bySubject, err := repo.ListBySubject(ctx, requester.ID)
	require.NoError(t, err)
	assert.Len(t, bySubject, 1)
}
