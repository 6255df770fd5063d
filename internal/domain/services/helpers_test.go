package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/internal/infrastructure/locking"
	"github.com/rentum/rentum/internal/infrastructure/repositories/postgresql"
	"github.com/rentum/rentum/internal/infrastructure/repositories/postgresql/testutil"
	"github.com/rentum/rentum/pkg/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testEnv wires the services against a real test database
type testEnv struct {
	db    *testutil.TestDB
	repos *postgresql.Repositories
	cache *fakeCache

	profiles   *ProfileService
	reviews    *ReviewService
	users      *UserService
	reconciler *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	t.Cleanup(func() { db.Cleanup(t) })

	repos := postgresql.NewRepositories(db.DB)
	locker := locking.NewMemoryLocker()
	cache := newFakeCache()
	log := logger.NewForTesting()
	metrics := NoopMetrics{}

	scorer, err := NewScorer(NewKeywordAnalyzer(), DefaultScoringConfig())
	require.NoError(t, err)

	profiles := NewProfileService(repos.Transactor, repos.ProfileRepo, repos.UserRepo, locker, cache, metrics, log, ProfileServiceConfig{})
	reviews := NewReviewService(repos.Transactor, repos.UserRepo, repos.RequestRepo, repos.ResponseRepo, scorer, profiles, locker, metrics, log)
	reconciler := NewReconciler(repos.Transactor, repos.UserRepo, repos.PropertyRepo, repos.AgreementRepo, locker, metrics, log, ReconcilerConfig{})

	return &testEnv{
		db:         db,
		repos:      repos,
		cache:      cache,
		profiles:   profiles,
		reviews:    reviews,
		users:      NewUserService(repos.UserRepo, reviews, log),
		reconciler: reconciler,
	}
}

func (e *testEnv) scanService(provider ExtractionProvider) *ScanService {
	return NewScanService(
		e.repos.ScanRepo,
		e.repos.UserRepo,
		e.repos.PropertyRepo,
		e.repos.AgreementRepo,
		NewFieldExtractor(provider, time.Second),
		e.reconciler,
		NoopMetrics{},
		logger.NewForTesting(),
		ScanServiceConfig{MaxDocumentBytes: 1 << 20},
	)
}

func uniformRatings(rating int) models.CategoryRatings {
	ratings := models.CategoryRatings{}
	for _, category := range models.AllCategories {
		ratings[category] = rating
	}
	return ratings
}

func submitParams(request *models.ReviewRequest, reviewer *models.User, rating int, comments string) SubmitResponseParams {
	return SubmitResponseParams{
		RequestID:     request.ID,
		ReviewerID:    reviewer.ID,
		Ratings:       uniformRatings(rating),
		OverallRating: rating,
		Comments:      comments,
	}
}

// fakeCache is an in-process CacheService for tests
type fakeCache struct {
	mu        sync.Mutex
	entries   map[string]string
	beforeSet func(key string)
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

// onNextSet runs fn once, just before the next Set stores its value.
func (c *fakeCache) onNextSet(fn func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeSet = fn
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook(key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = fmt.Sprint(value)
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) cached(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }
func (c *fakeCache) Close() error                   { return nil }

// MockExtractionProvider is a testify mock of ExtractionProvider
type MockExtractionProvider struct {
	mock.Mock
}

func (m *MockExtractionProvider) Extract(ctx context.Context, content []byte, class models.DocumentClass) (map[string]FieldValue, error) {
	args := m.Called(ctx, content, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]FieldValue), args.Error(1)
}

// MockCommentAnalyzer is a testify mock of CommentAnalyzer
type MockCommentAnalyzer struct {
	mock.Mock
}

func (m *MockCommentAnalyzer) Analyze(ctx context.Context, comments string) (*CommentAnalysis, error) {
	args := m.Called(ctx, comments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CommentAnalysis), args.Error(1)
}
