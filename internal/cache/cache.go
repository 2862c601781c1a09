package cache

import (
	"context"
	"time"
)

// Cache is a best-effort key/value store. Misses and backend failures both
// report found=false; callers must tolerate either.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value; zero expiration uses the backend default
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	// Add stores value only when key is absent and reports whether it did
	Add(ctx context.Context, key string, value interface{}, expiration time.Duration) bool

	Delete(ctx context.Context, key string)

	DeleteByPrefix(ctx context.Context, prefix string)

	Flush(ctx context.Context)
}
