package lock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	redisClient "github.com/worksphere/billing/internal/redis"
	"github.com/worksphere/billing/internal/types"
)

const redisLockPrefix = "lock:"

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes locks with SET NX PX and polls until the request timeout
type RedisLocker struct {
	client *redisClient.Client
	logger *logger.Logger
	ttl    time.Duration
}

func NewRedisLocker(client *redisClient.Client, log *logger.Logger, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, logger: log, ttl: ttl}
}

func (l *RedisLocker) WithLock(ctx context.Context, req types.LockRequest, fn func(ctx context.Context) error) error {
	key := redisLockPrefix + req.Key
	token := types.GenerateUUID()

	if err := l.acquire(ctx, key, token, req.GetTimeout()); err != nil {
		return err
	}
	defer l.release(key, token)

	return fn(ctx)
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string, timeout time.Duration) error {
	rdb := l.client.GetClient()

	try := func() error {
		ok, err := rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(ierr.WithError(err).
				WithHint("Failed to reach lock store").
				Mark(ierr.ErrSystem))
		}
		if !ok {
			return errLockHeld(key)
		}
		return nil
	}

	if timeout <= 0 {
		return try()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout

	if err := backoff.Retry(try, backoff.WithContext(b, ctx)); err != nil {
		if ierr.IsSystem(err) {
			return err
		}
		return errLockHeld(key)
	}
	return nil
}

func (l *RedisLocker) release(key, token string) {
	// release must happen even when the caller's context is done
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client.GetClient(), []string{key}, token).Err(); err != nil {
		l.logger.Errorw("failed to release lock", "lock_key", key, "error", err)
	}
}
