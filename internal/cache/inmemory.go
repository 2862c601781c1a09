package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/worksphere/billing/internal/config"
)

// InMemoryCache implements Cache on go-cache. Values are stored as is, so
// Get returns the original pointer.
type InMemoryCache struct {
	cache   *gocache.Cache
	enabled bool
}

func NewInMemoryCache(cfg config.CacheConfig) *InMemoryCache {
	return &InMemoryCache{
		cache:   gocache.New(ExpiryDefaultInMemory, 2*ExpiryDefaultInMemory),
		enabled: cfg.Enabled,
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = ExpiryDefaultInMemory
	}
	c.cache.Set(key, value, expiration)
}

// Add works even when the cache is disabled since callers use it for dedup
func (c *InMemoryCache) Add(_ context.Context, key string, value interface{}, expiration time.Duration) bool {
	if expiration == 0 {
		expiration = ExpiryDefaultInMemory
	}
	return c.cache.Add(key, value, expiration) == nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

func (c *InMemoryCache) Flush(_ context.Context) {
	c.cache.Flush()
}
