package main

import (
	"context"
	"time"

	"github.com/rentum/rentum/pkg/logger"
)

// StaleExpirer expires pending review requests older than a cutoff
type StaleExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// SweeperConfig holds configuration for the expiry sweep
type SweeperConfig struct {
	RequestTTL time.Duration
	Interval   time.Duration
	// SweepTimeout bounds one pass; defaults to Interval
	SweepTimeout time.Duration
}

// ExpirySweeper periodically moves stale pending review requests to expired
type ExpirySweeper struct {
	expirer StaleExpirer
	config  SweeperConfig
	logger  *logger.Logger
}

// NewExpirySweeper creates a new sweeper
func NewExpirySweeper(expirer StaleExpirer, config SweeperConfig, log *logger.Logger) *ExpirySweeper {
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = config.Interval
	}
	return &ExpirySweeper{
		expirer: expirer,
		config:  config,
		logger:  log,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs a single pass and returns how many requests it expired
func (s *ExpirySweeper) sweep(ctx context.Context) int {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	start := time.Now()
	expired, err := s.expirer.ExpireStale(sweepCtx, s.config.RequestTTL)
	if err != nil {
		s.logger.Error("Expiry sweep failed", "error", err, "expired", expired)
		return expired
	}
	if expired > 0 {
		s.logger.Info("Expired stale review requests",
			"count", expired,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return expired
}
