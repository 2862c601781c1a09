package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/logger"
	redisClient "github.com/worksphere/billing/internal/redis"
	"go.uber.org/zap"
)

type cachedPolicy struct {
	TenantID  string `json:"tenant_id"`
	GraceDays int    `json:"grace_days"`
}

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	client := redisClient.NewFromRedis(rdb, testLogger())
	return NewRedisCache(client, testLogger(), config.CacheConfig{Enabled: true, Type: string(CacheTypeRedis)}), mr
}

func TestCaches(t *testing.T) {
	redisCache, _ := newRedisCache(t)
	caches := map[string]Cache{
		"inmemory": NewInMemoryCache(config.CacheConfig{Enabled: true}),
		"redis":    redisCache,
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			c.Set(ctx, PrefixPolicy+"t1", &cachedPolicy{TenantID: "t1", GraceDays: 15}, 0)
			raw, ok := c.Get(ctx, PrefixPolicy+"t1")
			require.True(t, ok)
			p, ok := UnmarshalCacheValue[cachedPolicy](raw)
			require.True(t, ok)
			assert.Equal(t, 15, p.GraceDays)

			assert.True(t, c.Add(ctx, PrefixEventDedup+"evt_1", "1", time.Minute))
			assert.False(t, c.Add(ctx, PrefixEventDedup+"evt_1", "1", time.Minute))

			c.DeleteByPrefix(ctx, PrefixPolicy)
			_, ok = c.Get(ctx, PrefixPolicy+"t1")
			assert.False(t, ok)

			_, ok = c.Get(ctx, PrefixEventDedup+"evt_1")
			assert.True(t, ok)
			c.Delete(ctx, PrefixEventDedup+"evt_1")
			_, ok = c.Get(ctx, PrefixEventDedup+"evt_1")
			assert.False(t, ok)
		})
	}
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestInMemoryCache_Disabled(t *testing.T) {
	c := NewInMemoryCache(config.CacheConfig{Enabled: false})
	ctx := context.Background()

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	assert.True(t, c.Add(ctx, "dedup", "1", 0))
	assert.False(t, c.Add(ctx, "dedup", "1", 0))
}
