package lock

import (
	"context"
	"time"

	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/postgres"
	redisClient "github.com/worksphere/billing/internal/redis"
	"github.com/worksphere/billing/internal/types"
)

// Locker serializes work on a key across goroutines or processes. fn runs
// only while the lock is held. A lock that cannot be taken within the request
// timeout fails with an error marked ierr.ErrTimeout.
type Locker interface {
	WithLock(ctx context.Context, req types.LockRequest, fn func(ctx context.Context) error) error
}

type Type string

const (
	TypeMemory   Type = "memory"
	TypeRedis    Type = "redis"
	TypePostgres Type = "postgres"

	// DefaultTTL bounds how long a crashed holder can keep a redis lock
	DefaultTTL = 5 * time.Minute
)

// New picks the implementation configured under locker.type. Missing
// backends fall back to the in-memory locker, which is only safe for a
// single process.
func New(cfg *config.Configuration, log *logger.Logger, rdb *redisClient.Client, pg *postgres.Client) Locker {
	switch Type(cfg.Locker.Type) {
	case TypeRedis:
		if rdb != nil {
			log.Infow("using redis locker", "ttl", cfg.Locker.TTL)
			return NewRedisLocker(rdb, log, cfg.Locker.TTL)
		}
		log.Warnw("redis locker configured without a redis client, falling back to memory")
	case TypePostgres:
		if pg != nil {
			log.Infow("using postgres advisory locker")
			return NewPostgresLocker(pg)
		}
		log.Warnw("postgres locker configured without a database, falling back to memory")
	}
	return NewMemoryLocker()
}
