package postgresql

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/internal/infrastructure/repositories/postgresql/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewRequestRepository_TransitionStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewReviewRequestRepository(db.DB)
	ctx := context.Background()

	requester := db.CreateTestUser(t, models.UserRoleTenant)
	reviewer := db.CreateTestUser(t, models.UserRoleLandlord)
	request := db.CreateTestReviewRequest(t, requester, reviewer)

	ok, err := repo.TransitionStatus(ctx, request.ID, models.ReviewPending, models.ReviewFulfilled)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second transition from pending loses
	ok, err = repo.TransitionStatus(ctx, request.ID, models.ReviewPending, models.ReviewExpired)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewFulfilled, found.Status)
	assert.NotNil(t, found.ResolvedAt)
}

func TestReviewRequestRepository_Invitations(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewReviewRequestRepository(db.DB)
	ctx := context.Background()

	requester := db.CreateTestUser(t, models.UserRoleLandlord)
	request := &models.ReviewRequest{
		RequesterID:   requester.ID,
		ReviewerEmail: "Invitee@Example.com",
		RequestType:   models.ReviewTypeTenant,
	}
	require.NoError(t, repo.Create(ctx, request))
	assert.Equal(t, models.ReviewPending, request.Status)

	pending, err := repo.ListPendingByEmail(ctx, "invitee@example.com")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	reviewerID := uuid.New()
	require.NoError(t, repo.BindReviewer(ctx, request.ID, reviewerID))

	// Bound invitations are no longer open
	err = repo.BindReviewer(ctx, request.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	pending, err = repo.ListPendingByEmail(ctx, "invitee@example.com")
	require.NoError(t, err)
	assert.Empty(t, pending)

	found, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ReviewerID)
	assert.Equal(t, reviewerID, *found.ReviewerID)
}

func TestReviewRequestRepository_ListPendingCreatedBefore(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewReviewRequestRepository(db.DB)
	ctx := context.Background()

	requester := db.CreateTestUser(t, models.UserRoleTenant)
	reviewer := db.CreateTestUser(t, models.UserRoleLandlord)

	old := db.CreateTestReviewRequest(t, requester, reviewer)
	require.NoError(t, db.Model(&models.ReviewRequest{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)
	db.CreateTestReviewRequest(t, requester, reviewer)

	stale, err := repo.ListPendingCreatedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestReviewRequestRepository_ListFulfilledForSubject(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewReviewRequestRepository(db.DB)
	ctx := context.Background()

	subject := db.CreateTestUser(t, models.UserRoleTenant)
	other := db.CreateTestUser(t, models.UserRoleTenant)
	reviewer := db.CreateTestUser(t, models.UserRoleLandlord)

	fulfilled := db.CreateTestReviewRequest(t, subject, reviewer)
	db.CreateTestReviewRequest(t, subject, reviewer)
	otherFulfilled := db.CreateTestReviewRequest(t, other, reviewer)

	for _, id := range []uuid.UUID{fulfilled.ID, otherFulfilled.ID} {
		ok, err := repo.TransitionStatus(ctx, id, models.ReviewPending, models.ReviewFulfilled)
		require.NoError(t, err)
		require.True(t, ok)
	}

	requests, err := repo.ListFulfilledForSubject(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, fulfilled.ID, requests[0].ID)
}
