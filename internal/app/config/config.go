package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rentum/rentum/internal/domain/services"
)

type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Locking     LockingConfig
	Extraction  ExtractionConfig
	Scoring     ScoringConfig
	Reconcile   ReconcileConfig
	Worker      WorkerConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL     string
	TestURL string
}

// RedisConfig selects the cache backend. "memory" keeps everything in process.
type RedisConfig struct {
	URL string
}

type LockingConfig struct {
	Backend       string
	TTL           time.Duration
	RetryInterval time.Duration
}

type ExtractionConfig struct {
	Timeout          time.Duration
	MaxDocumentBytes int
	OCRBaseURL       string
	OCRAPIKey        string
	OCRRetryAttempts int
}

type ScoringConfig struct {
	LowRiskThreshold    float64
	MediumRiskThreshold float64
	OverallWeight       float64
	MaxTextFlags        int
	AnalyzerTimeout     time.Duration
}

type ReconcileConfig struct {
	ReviewThreshold float64
}

type WorkerConfig struct {
	ReviewRequestTTL time.Duration
	SweepInterval    time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Load configuration from environment variables
func Load() (*Config, error) {
	// Load .env file in non-production environments
	env := os.Getenv("ENVIRONMENT")
	if env != "production" {
		_ = godotenv.Load() // .env file is optional
	}

	defaults := services.DefaultScoringConfig()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("HOST", "localhost"),
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},
		Database: DatabaseConfig{
			URL:     getEnv("DATABASE_URL", "file:rentum.db?_busy_timeout=5000"),
			TestURL: getEnv("DATABASE_URL_TEST", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "memory"),
		},
		Locking: LockingConfig{
			Backend:       strings.ToLower(getEnv("LOCK_BACKEND", LockBackendMemory)),
			TTL:           parseDuration(getEnv("LOCK_TTL", "30s")),
			RetryInterval: parseDuration(getEnv("LOCK_RETRY_INTERVAL", "25ms")),
		},
		Extraction: ExtractionConfig{
			Timeout:          parseDuration(getEnv("EXTRACTION_TIMEOUT", "60s")),
			MaxDocumentBytes: parseInt(getEnv("MAX_DOCUMENT_BYTES", "10485760")),
			OCRBaseURL:       getEnv("OCR_BASE_URL", ""),
			OCRAPIKey:        getEnv("OCR_API_KEY", ""),
			OCRRetryAttempts: parseInt(getEnv("OCR_RETRY_ATTEMPTS", "3")),
		},
		Scoring: ScoringConfig{
			LowRiskThreshold:    parseFloat(getEnv("LOW_RISK_THRESHOLD", ""), defaults.Thresholds.Low),
			MediumRiskThreshold: parseFloat(getEnv("MEDIUM_RISK_THRESHOLD", ""), defaults.Thresholds.Medium),
			OverallWeight:       parseFloat(getEnv("OVERALL_RATING_WEIGHT", ""), defaults.OverallWeight),
			MaxTextFlags:        parseInt(getEnv("MAX_TEXT_FLAGS", strconv.Itoa(defaults.MaxTextFlags))),
			AnalyzerTimeout:     parseDuration(getEnv("ANALYZER_TIMEOUT", defaults.AnalyzerTimeout.String())),
		},
		Reconcile: ReconcileConfig{
			ReviewThreshold: parseFloat(getEnv("REVIEW_THRESHOLD", ""), services.DefaultReviewThreshold),
		},
		Worker: WorkerConfig{
			ReviewRequestTTL: parseDuration(getEnv("REVIEW_REQUEST_TTL", "720h")),
			SweepInterval:    parseDuration(getEnv("WORKER_INTERVAL", "1h")),
		},
		Metrics: MetricsConfig{
			Enabled: parseBool(getEnv("METRICS_ENABLED", "true")),
		},
	}

	// Validate required configuration
	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ScoringRules merges the configured overrides into the default scoring rules
func (c *Config) ScoringRules() services.ScoringConfig {
	rules := services.DefaultScoringConfig()
	rules.Thresholds = services.RiskThresholds{
		Low:    c.Scoring.LowRiskThreshold,
		Medium: c.Scoring.MediumRiskThreshold,
	}
	rules.OverallWeight = c.Scoring.OverallWeight
	rules.MaxTextFlags = c.Scoring.MaxTextFlags
	rules.AnalyzerTimeout = c.Scoring.AnalyzerTimeout
	return rules
}

// GetDatabaseURL returns the appropriate database URL based on environment
func (c *Config) GetDatabaseURL() string {
	if c.Environment == "test" && c.Database.TestURL != "" {
		return c.Database.TestURL
	}
	return c.Database.URL
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

func validate(config *Config) error {
	if config.IsProduction() && os.Getenv("DATABASE_URL") == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	switch config.Locking.Backend {
	case LockBackendMemory:
	case LockBackendRedis:
		if config.Redis.URL == "" || config.Redis.URL == "memory" {
			return fmt.Errorf("REDIS_URL must point at redis when LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", config.Locking.Backend)
	}
	if config.Extraction.MaxDocumentBytes <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_BYTES must be positive")
	}
	if config.Extraction.Timeout <= 0 {
		return fmt.Errorf("EXTRACTION_TIMEOUT must be a positive duration")
	}
	if t := config.Reconcile.ReviewThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("REVIEW_THRESHOLD must be within (0, 1]")
	}
	if config.Worker.ReviewRequestTTL <= 0 || config.Worker.SweepInterval <= 0 {
		return fmt.Errorf("REVIEW_REQUEST_TTL and WORKER_INTERVAL must be positive durations")
	}
	if err := config.ScoringRules().Validate(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(value string) int {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return 0
}

func parseFloat(value string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return fallback
}

func parseBool(value string) bool {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return false
}

func parseDuration(value string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return 0
}
