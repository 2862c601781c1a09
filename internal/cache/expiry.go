package cache

import "time"

const (
	ExpiryDefaultInMemory = 30 * time.Minute
	ExpiryDefaultRedis    = 5 * time.Minute

	// ExpiryEventDedup bounds how long a published event id is remembered
	ExpiryEventDedup = 24 * time.Hour
	ExpiryPolicy     = 10 * time.Minute
	ExpiryUsage      = 15 * time.Minute
)

// Key prefixes
const (
	PrefixEventDedup = "billing:event:"
	PrefixPolicy     = "billing:policy:"
	PrefixUsage      = "billing:usage:"
)
