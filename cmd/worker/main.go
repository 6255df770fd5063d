package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rentum/rentum/internal/app/config"
	appservices "github.com/rentum/rentum/internal/app/services"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New()

	log.Info("Starting Rentum review expiry worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log = logger.NewFromString(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.GetDatabaseURL())
	if err != nil {
		log.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	// Initialize service manager
	serviceManager, err := appservices.NewServiceManager(cfg, db, log)
	if err != nil {
		log.Error("Failed to initialize service manager", "error", err)
		_ = db.Close()
		os.Exit(1)
	}
	defer serviceManager.Close()

	// Health check
	if err := serviceManager.HealthCheck(context.Background()); err != nil {
		log.Error("Service health check failed", "error", err)
		os.Exit(1)
	}

	sweeper := NewExpirySweeper(serviceManager.ReviewService, SweeperConfig{
		RequestTTL: cfg.Worker.ReviewRequestTTL,
		Interval:   cfg.Worker.SweepInterval,
	}, log)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Expiry worker started",
		"request_ttl", cfg.Worker.ReviewRequestTTL,
		"interval", cfg.Worker.SweepInterval)

	sweeper.Run(ctx)
	log.Info("Expiry worker stopped gracefully")
}
