package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rentum/rentum/internal/domain/services"
)

// MemoryCache implements services.CacheService in process. It backs
// single-instance deployments and tests.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(defaultExpiration, cleanupInterval)}
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.store.Set(key, stringify(value), ttl(expiration))
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	value, found := c.store.Get(key)
	if !found {
		return "", services.ErrCacheMiss
	}
	return value.(string), nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

func (c *MemoryCache) Close() error {
	c.store.Flush()
	return nil
}

func ttl(expiration time.Duration) time.Duration {
	if expiration <= 0 {
		return gocache.NoExpiration
	}
	return expiration
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
