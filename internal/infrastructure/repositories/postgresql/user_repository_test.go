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

func TestUserRepository_Create(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	user := &models.User{
		Name:  "John Doe",
		Email: "  John@Example.com ",
		Role:  models.UserRoleTenant,
	}

	err := repo.Create(ctx, user)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.NotZero(t, user.CreatedAt)
	assert.Equal(t, "john@example.com", user.Email)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	// Create first user
	user1 := &models.User{Name: "John", Email: "duplicate@example.com", Role: models.UserRoleTenant}
	require.NoError(t, repo.Create(ctx, user1))

	// Same address in another case collides after normalization
	user2 := &models.User{Name: "Jane", Email: "Duplicate@example.com", Role: models.UserRoleLandlord}
	err := repo.Create(ctx, user2)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "already exists")
}

func TestUserRepository_GetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	original := db.CreateTestUser(t, models.UserRoleLandlord)

	found, err := repo.GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, found.ID)
	assert.Equal(t, original.Email, found.Email)
	assert.Equal(t, original.Role, found.Role)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewUserRepository(db.DB)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	user := db.CreateTestUser(t, models.UserRoleTenant)

	found, err := repo.GetByEmail(ctx, "  "+user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer db.Cleanup(t)

	repo := NewUserRepository(db.DB)

	db.CreateTestUser(t, models.UserRoleTenant)
	db.CreateTestUser(t, models.UserRoleLandlord)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
