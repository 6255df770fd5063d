package services

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rentum/rentum/internal/app/config"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/internal/infrastructure/cache"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/extraction"
	"github.com/rentum/rentum/internal/infrastructure/locking"
	"github.com/rentum/rentum/internal/infrastructure/metrics"
	"github.com/rentum/rentum/internal/infrastructure/repositories/postgresql"
	"github.com/rentum/rentum/pkg/logger"
)

// ServiceManager manages all application services
type ServiceManager struct {
	Config *config.Config

	// Infrastructure
	DB           *database.DB
	Repositories *postgresql.Repositories
	CacheService services.CacheService
	Locker       services.KeyedLocker
	Registry     *prometheus.Registry

	// Domain services
	UserService    *services.UserService
	ScanService    *services.ScanService
	ReviewService  *services.ReviewService
	ProfileService *services.ProfileService
	ViewService    *services.ViewService
}

// NewServiceManager creates a new service manager
func NewServiceManager(cfg *config.Config, db *database.DB, log *logger.Logger) (*ServiceManager, error) {
	// Initialize repositories
	repos := postgresql.NewRepositories(db)

	// Initialize cache service, in process unless REDIS_URL points at redis
	cacheService, err := cache.CreateCacheService(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache service: %w", err)
	}

	locker, err := newLocker(cfg, cacheService)
	if err != nil {
		_ = cacheService.Close()
		return nil, err
	}

	var (
		registry      *prometheus.Registry
		engineMetrics services.EngineMetrics = services.NoopMetrics{}
	)
	if cfg.Metrics.Enabled {
		registry = metrics.NewRegistry()
		m, err := metrics.NewEngineMetrics(registry)
		if err != nil {
			_ = cacheService.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		engineMetrics = m
	}

	recognizer, err := newRecognizer(cfg)
	if err != nil {
		_ = cacheService.Close()
		return nil, err
	}

	scorer, err := services.NewScorer(services.NewKeywordAnalyzer(), cfg.ScoringRules())
	if err != nil {
		_ = cacheService.Close()
		return nil, fmt.Errorf("failed to initialize scorer: %w", err)
	}

	profileService := services.NewProfileService(
		repos.Transactor,
		repos.ProfileRepo,
		repos.UserRepo,
		locker,
		cacheService,
		engineMetrics,
		log.With("component", "profiles"),
		services.ProfileServiceConfig{CacheTTL: services.CacheShortTerm},
	)

	reviewService := services.NewReviewService(
		repos.Transactor,
		repos.UserRepo,
		repos.RequestRepo,
		repos.ResponseRepo,
		scorer,
		profileService,
		locker,
		engineMetrics,
		log.With("component", "reviews"),
	)

	reconciler := services.NewReconciler(
		repos.Transactor,
		repos.UserRepo,
		repos.PropertyRepo,
		repos.AgreementRepo,
		locker,
		engineMetrics,
		log.With("component", "reconciler"),
		services.ReconcilerConfig{ReviewThreshold: cfg.Reconcile.ReviewThreshold},
	)

	scanService := services.NewScanService(
		repos.ScanRepo,
		repos.UserRepo,
		repos.PropertyRepo,
		repos.AgreementRepo,
		services.NewFieldExtractor(extraction.NewPatternExtractor(recognizer), cfg.Extraction.Timeout),
		reconciler,
		engineMetrics,
		log.With("component", "scans"),
		services.ScanServiceConfig{MaxDocumentBytes: cfg.Extraction.MaxDocumentBytes},
	)

	sm := &ServiceManager{
		Config:       cfg,
		DB:           db,
		Repositories: repos,
		CacheService: cacheService,
		Locker:       locker,
		Registry:     registry,

		UserService:    services.NewUserService(repos.UserRepo, reviewService, log.With("component", "users")),
		ScanService:    scanService,
		ReviewService:  reviewService,
		ProfileService: profileService,
		ViewService: services.NewViewService(services.NewRepositorySource(
			repos.ActivityRepo,
			repos.ScanRepo,
			repos.RequestRepo,
			repos.ResponseRepo,
		)),
	}

	return sm, nil
}

func newLocker(cfg *config.Config, cacheService services.CacheService) (services.KeyedLocker, error) {
	if cfg.Locking.Backend != config.LockBackendRedis {
		return locking.NewMemoryLocker(), nil
	}
	redisCache, ok := cacheService.(*cache.RedisCache)
	if !ok {
		return nil, fmt.Errorf("redis locking requires the redis cache backend")
	}
	return locking.NewRedisLocker(redisCache.Client(), locking.RedisOptions{
		TTL:           cfg.Locking.TTL,
		RetryInterval: cfg.Locking.RetryInterval,
	}), nil
}

func newRecognizer(cfg *config.Config) (services.TextRecognizer, error) {
	if cfg.Extraction.OCRBaseURL == "" {
		return extraction.NewPlainTextRecognizer(), nil
	}
	recognizer, err := extraction.NewRemoteRecognizer(extraction.RemoteRecognizerConfig{
		BaseURL:       cfg.Extraction.OCRBaseURL,
		APIKey:        cfg.Extraction.OCRAPIKey,
		Timeout:       cfg.Extraction.Timeout,
		RetryAttempts: cfg.Extraction.OCRRetryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR client: %w", err)
	}
	return recognizer, nil
}

// Health check for all services
func (sm *ServiceManager) HealthCheck(ctx context.Context) error {
	// Check database
	if err := sm.Repositories.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check cache
	if err := sm.CacheService.Ping(ctx); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}

	return nil
}

// Close gracefully shuts down all services
func (sm *ServiceManager) Close() error {
	// Close cache service
	if err := sm.CacheService.Close(); err != nil {
		return fmt.Errorf("failed to close cache service: %w", err)
	}

	// Close database connection
	if err := sm.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
