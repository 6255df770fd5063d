package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rentum/rentum/internal/domain/apperrors"
)

// acquire takes a keyed lock and records how long the caller waited.
func acquire(ctx context.Context, locker KeyedLocker, metrics EngineMetrics, key string) (func(), error) {
	start := time.Now()
	release, err := locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lock %s: %v", apperrors.ErrDependencyFailure, key, err)
	}
	metrics.RecordLockWait(key, time.Since(start))
	return release, nil
}

// releaseAll runs release funcs in reverse acquisition order.
func releaseAll(releases []func()) {
	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}
