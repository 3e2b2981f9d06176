// Package cache provides the domain interface for operation result caching.
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for operation result caching.
// Implementations may be in-memory, Redis, or any other backend.
type Cache interface {
	// Get retrieves a cached value by key.
	// Returns the value, whether it was found, and any error.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores a value with the given key and options.
	Set(ctx context.Context, key string, value any, opts SetOptions) error

	// Delete removes a cached entry by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error
}

// Computer is the read-through contract used by the caching layer. A valid
// entry is returned without invoking compute; on miss, compute runs and only
// a successful result is cached. Failures are never cached.
type Computer interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error)
}

// SetOptions configures how a value is stored in the cache.
type SetOptions struct {
	// TTL is the time-to-live for the cached entry.
	// Zero means no expiration.
	TTL time.Duration
}

// Stats provides cache statistics.
type Stats struct {
	// Hits is the number of cache hits.
	Hits int64
	// Misses is the number of cache misses.
	Misses int64
	// Evictions is the number of capacity evictions.
	Evictions int64
	// Size is the current number of entries, expired or not.
	Size int64
	// Expired is the approximate number of entries past their expiry that
	// have not been swept yet.
	Expired int64
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int64
}

// StatsProvider is an optional interface for caches that support statistics.
type StatsProvider interface {
	// Stats returns current cache statistics.
	Stats() Stats
}
