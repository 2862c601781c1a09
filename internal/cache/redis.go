package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/logger"
	redisClient "github.com/worksphere/billing/internal/redis"
)

const (
	// DeleteRetryDelay is the pause before retrying a failed delete
	DeleteRetryDelay = 100 * time.Millisecond

	// ScanCount is the SCAN page size used by DeleteByPrefix
	ScanCount = 100
)

// RedisCache implements Cache on redis. Non-string values are stored as JSON;
// read them back with UnmarshalCacheValue.
type RedisCache struct {
	client  *redis.Client
	log     *logger.Logger
	enabled bool
}

func NewRedisCache(client *redisClient.Client, log *logger.Logger, cfg config.CacheConfig) *RedisCache {
	return &RedisCache{
		client:  client.GetClient(),
		log:     log,
		enabled: cfg.Enabled,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}

	sp := startSpan(ctx, "redis", "get", key)
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		sp.end(nil)
		return nil, false
	}
	sp.end(err)
	if err != nil {
		c.log.Errorw("redis GET failed", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = ExpiryDefaultRedis
	}

	strValue, ok := c.encode(key, value)
	if !ok {
		return
	}

	sp := startSpan(ctx, "redis", "set", key)
	err := c.client.Set(ctx, key, strValue, expiration).Err()
	sp.end(err)
	if err != nil {
		c.log.Errorw("redis SET failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Add(ctx context.Context, key string, value interface{}, expiration time.Duration) bool {
	if expiration == 0 {
		expiration = ExpiryDefaultRedis
	}
	strValue, ok := c.encode(key, value)
	if !ok {
		return false
	}
	added, err := c.client.SetNX(ctx, key, strValue, expiration).Result()
	if err != nil {
		// Treat as added so a redis outage does not suppress events
		c.log.Errorw("redis SETNX failed", "key", key, "error", err)
		return true
	}
	return added
}

func (c *RedisCache) encode(key string, value interface{}) (string, bool) {
	if s, ok := value.(string); ok {
		return s, true
	}
	b, err := json.Marshal(value)
	if err != nil {
		c.log.Errorw("failed to marshal cache value", "key", key, "error", err)
		return "", false
	}
	return string(b), true
}

// Delete removes a key, retrying once on failure
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warnw("redis DEL failed, retrying", "key", key, "error", err)

		retryCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		time.Sleep(DeleteRetryDelay)

		if retryErr := c.client.Del(retryCtx, key).Err(); retryErr != nil {
			c.log.Errorw("redis DEL retry failed", "key", key, "error", retryErr)
		}
	}
}

func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, prefix+"*", ScanCount).Iterator()

	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			c.log.Errorw("redis DEL batch failed", "prefix", prefix, "error", err)
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 1000 {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		c.log.Errorw("redis SCAN failed", "prefix", prefix, "error", err)
	}
}

func (c *RedisCache) Flush(ctx context.Context) {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.log.Errorw("redis FLUSHDB failed", "error", err)
	}
}
