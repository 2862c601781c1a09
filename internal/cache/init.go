package cache

import (
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/logger"
	redisClient "github.com/worksphere/billing/internal/redis"
)

type CacheType string

const (
	CacheTypeInMemory CacheType = "inmemory"
	CacheTypeRedis    CacheType = "redis"
)

// Initialize builds the configured cache. A redis cache without a client
// falls back to memory.
func Initialize(cfg *config.Configuration, log *logger.Logger, client *redisClient.Client) Cache {
	switch CacheType(cfg.Cache.Type) {
	case CacheTypeRedis:
		if client != nil {
			log.Infow("cache initialized", "type", CacheTypeRedis)
			return NewRedisCache(client, log, cfg.Cache)
		}
		log.Warnw("redis cache requested without a redis client, using memory")
	}
	log.Infow("cache initialized", "type", CacheTypeInMemory)
	return NewInMemoryCache(cfg.Cache)
}
