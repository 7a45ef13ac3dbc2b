// Package cache provides key/value caches for registry lookups.
//
// upgrade resolves the dist-tags of every external dependency on each run.
// When a TTL is configured those answers are cached, either on local disk
// ([FileCache], the default) or in a shared Redis instance ([RedisCache]),
// so repeated runs across a large monorepo avoid hammering the registry.
// [NullCache] disables caching.
//
// Values are opaque bytes; callers choose the encoding.
package cache

import (
	"context"
	"time"
)

// Cache stores byte values with an optional time-to-live.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss, including an expired entry,
	// returns (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
