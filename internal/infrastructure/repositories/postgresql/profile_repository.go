package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct {
	db *database.DB
}

func NewProfileRepository(db *database.DB) repositories.ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetOrInit(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := r.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return newEmptyProfile(userID), nil
}

func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.Conn(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("profile")
		}
		return nil, storageError("get profile", err)
	}
	fillProfileMaps(&profile)
	return &profile, nil
}

// Save upserts the profile row keyed by user_id.
func (r *ProfileRepository) Save(ctx context.Context, profile *models.Profile) error {
	err := r.db.Conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(profile).Error
	if err != nil {
		return storageError("save profile", err)
	}
	return nil
}

func newEmptyProfile(userID uuid.UUID) *models.Profile {
	profile := &models.Profile{
		UserID:    userID,
		RiskTrend: models.TrendInsufficientData,
	}
	fillProfileMaps(profile)
	return profile
}

func fillProfileMaps(profile *models.Profile) {
	if profile.CategoryAverages == nil {
		profile.CategoryAverages = models.FloatMap{}
	}
	if profile.GreenFlagsCount == nil {
		profile.GreenFlagsCount = models.CountMap{}
	}
	if profile.RedFlagsCount == nil {
		profile.RedFlagsCount = models.CountMap{}
	}
	if profile.RecentScores == nil {
		profile.RecentScores = models.FloatList{}
	}
}
