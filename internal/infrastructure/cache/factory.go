package cache

import (
	"strings"

	"github.com/rentum/rentum/internal/domain/services"
)

// MemoryURL selects the in-process backend
const MemoryURL = "memory"

// CreateCacheService creates a cache from a URL: "memory" (or empty) for the
// in-process backend, a redis:// URL for Redis.
func CreateCacheService(url string) (services.CacheService, error) {
	url = strings.TrimSpace(url)
	if url == "" || url == MemoryURL {
		return NewMemoryCache(services.CacheMediumTerm, services.CacheLongTerm), nil
	}
	return NewRedisCache(url)
}
