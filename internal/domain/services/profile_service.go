package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

const (
	// RecentScoreWindow is how many of the latest scores drive the risk trend.
	RecentScoreWindow = 3

	improvingScore = 7.0
	decliningScore = 5.0
)

// ProfileServiceConfig holds configuration for profile reads
type ProfileServiceConfig struct {
	CacheTTL time.Duration
}

// ProfileService folds scored responses into per-user reputation profiles.
// Profiles are updated incrementally and never rebuilt on read.
type ProfileService struct {
	tx          repositories.Transactor
	profileRepo repositories.ProfileRepository
	userRepo    repositories.UserRepository

	locker  KeyedLocker
	cache   CacheService
	metrics EngineMetrics
	logger  *logger.Logger
	config  ProfileServiceConfig
}

// NewProfileService creates a new profile service. cache may be nil.
func NewProfileService(
	tx repositories.Transactor,
	profileRepo repositories.ProfileRepository,
	userRepo repositories.UserRepository,
	locker KeyedLocker,
	cache CacheService,
	metrics EngineMetrics,
	log *logger.Logger,
	config ProfileServiceConfig,
) *ProfileService {
	if config.CacheTTL <= 0 {
		config.CacheTTL = CacheShortTerm
	}
	return &ProfileService{
		tx:          tx,
		profileRepo: profileRepo,
		userRepo:    userRepo,
		locker:      locker,
		cache:       cache,
		metrics:     metrics,
		logger:      log,
		config:      config,
	}
}

// Fold applies one response to the subject's profile under the subject lock.
func (s *ProfileService) Fold(ctx context.Context, subjectID uuid.UUID, response *models.ReviewResponse) (*models.Profile, error) {
	release, err := acquire(ctx, s.locker, s.metrics, lockKey(ProfileLockKeyPattern, subjectID))
	if err != nil {
		return nil, err
	}
	defer release()

	var profile *models.Profile
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		profile, err = s.foldLocked(ctx, subjectID, response)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.storeFolded(ctx, profile)
	return profile, nil
}

// foldLocked expects the subject lock and a transaction to be held by the caller.
func (s *ProfileService) foldLocked(ctx context.Context, subjectID uuid.UUID, response *models.ReviewResponse) (*models.Profile, error) {
	profile, err := s.profileRepo.GetOrInit(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	FoldResponse(profile, response)
	profile.LastUpdated = time.Now().UTC()

	if err := s.profileRepo.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}

// FoldResponse updates the aggregates in place using running means.
func FoldResponse(profile *models.Profile, response *models.ReviewResponse) {
	if profile.CategoryAverages == nil {
		profile.CategoryAverages = models.FloatMap{}
	}
	if profile.GreenFlagsCount == nil {
		profile.GreenFlagsCount = models.CountMap{}
	}
	if profile.RedFlagsCount == nil {
		profile.RedFlagsCount = models.CountMap{}
	}

	profile.TotalReviews++
	n := float64(profile.TotalReviews)

	for category, rating := range response.Ratings() {
		key := string(category)
		old := profile.CategoryAverages[key]
		profile.CategoryAverages[key] = old + (float64(rating)-old)/n
	}
	profile.OverallRatingAverage += (float64(response.OverallRating) - profile.OverallRatingAverage) / n
	profile.OverallAIScore += (response.AIOverallScore - profile.OverallAIScore) / n

	for _, label := range response.AIGreenFlags {
		profile.GreenFlagsCount[label]++
	}
	for _, label := range response.AIRedFlags {
		profile.RedFlagsCount[label]++
	}

	profile.RecentScores = append(profile.RecentScores, response.AIOverallScore)
	if len(profile.RecentScores) > RecentScoreWindow {
		profile.RecentScores = profile.RecentScores[len(profile.RecentScores)-RecentScoreWindow:]
	}
	profile.RiskTrend = RiskTrendFor(profile.RecentScores)
}

// RiskTrendFor classifies the latest scores: improving when all are at
// least 7, declining when all are at most 5.
func RiskTrendFor(recent []float64) models.RiskTrend {
	if len(recent) < RecentScoreWindow {
		return models.TrendInsufficientData
	}
	improving, declining := true, true
	for _, score := range recent[len(recent)-RecentScoreWindow:] {
		if score < improvingScore {
			improving = false
		}
		if score > decliningScore {
			declining = false
		}
	}
	switch {
	case improving:
		return models.TrendImproving
	case declining:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// GetProfile returns the user's profile, reading through the cache. Users
// without reviews get an empty profile.
//
// A miss is filled under the subject lock, so a fill cannot land after a
// concurrent fold has already refreshed the entry.
func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if cached, ok := s.fromCache(ctx, userID); ok {
		return cached, nil
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if s.cache == nil {
		return s.loadProfile(ctx, userID)
	}

	release, err := acquire(ctx, s.locker, s.metrics, lockKey(ProfileLockKeyPattern, userID))
	if err != nil {
		return nil, err
	}
	defer release()

	if cached, ok := s.fromCache(ctx, userID); ok {
		return cached, nil
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, profile)
	return profile, nil
}

func (s *ProfileService) loadProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.profileRepo.GetOrInit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// storeFolded writes a freshly folded profile through to the cache. The
// caller must still hold the subject lock. When the write fails the entry
// is dropped instead.
func (s *ProfileService) storeFolded(ctx context.Context, profile *models.Profile) {
	if s.cache == nil {
		return
	}
	if !s.toCache(ctx, profile) {
		s.Invalidate(ctx, profile.UserID)
	}
}

// Invalidate drops the cached profile for userID.
func (s *ProfileService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, profileCacheKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate cached profile", "user_id", userID, "error", err)
	}
}

func (s *ProfileService) fromCache(ctx context.Context, userID uuid.UUID) (*models.Profile, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, profileCacheKey(userID))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}
	var profile models.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.logger.Warn("discarding corrupt cached profile", "user_id", userID, "error", err)
		return nil, false
	}
	return &profile, true
}

func (s *ProfileService) toCache(ctx context.Context, profile *models.Profile) bool {
	if s.cache == nil {
		return false
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return false
	}
	if err := s.cache.Set(ctx, profileCacheKey(profile.UserID), string(data), s.config.CacheTTL); err != nil {
		s.logger.Warn("profile cache write failed", "user_id", profile.UserID, "error", err)
		return false
	}
	return true
}

func profileCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf(ProfileCacheKeyPattern, userID)
}
