package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/worksphere/billing/internal/config"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
)

// Client wraps a go-redis client shared by the cache, the lock and the shard
// progress tracker.
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

func optionsFromConfig(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		PoolSize:     cfg.PoolSize,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewClient connects and pings the server
func NewClient(cfg config.RedisConfig, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(optionsFromConfig(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, ierr.WithError(err).
			WithHintf("Failed to connect to Redis at %s:%d", cfg.Host, cfg.Port).
			Mark(ierr.ErrSystem)
	}

	log.Infow("connected to redis", "host", cfg.Host, "db", cfg.DB)
	return &Client{rdb: rdb, log: log}, nil
}

// NewFromRedis wraps an existing go-redis client, as used by tests
func NewFromRedis(rdb *redis.Client, log *logger.Logger) *Client {
	return &Client{rdb: rdb, log: log}
}

func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
