package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/datakit/domain/cache"
	"github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed implementation of cache.Cache. Values are stored
// as JSON; Get returns them as json.RawMessage for the caller to decode.
// Expiry is delegated to Redis key TTLs, so eviction policy selection does
// not apply here.
type Cache struct {
	client    *redis.Client
	keyPrefix string
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCache creates a new Redis cache with the given configuration.
func NewCache(cfg Config, opts ...ConfigOption) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(cache.ErrConnectionFailed, err)
	}

	return &Cache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewCacheFromClient creates a cache from an existing Redis client.
func NewCacheFromClient(client *redis.Client, keyPrefix string) *Cache {
	return &Cache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// prefixKey adds the key prefix.
func (c *Cache) prefixKey(key string) string {
	return c.keyPrefix + "cache:" + key
}

// Get retrieves a value from the cache.
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	result, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, c.wrapError(err)
	}

	c.hits.Add(1)
	return json.RawMessage(result), true, nil
}

// Set stores a value in the cache. The value is JSON-encoded; a TTL of zero
// stores the entry without expiry.
func (c *Cache) Set(ctx context.Context, key string, value any, opts cache.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if key == "" {
		return cache.ErrInvalidKey
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Join(cache.ErrInvalidValue, err)
	}

	var expiration time.Duration
	if opts.TTL > 0 {
		expiration = opts.TTL
	}

	if err := c.client.Set(ctx, c.prefixKey(key), payload, expiration).Err(); err != nil {
		return c.wrapError(err)
	}

	return nil
}

// GetOrCompute returns the cached value for key, invoking compute on a miss
// and caching a successful result with the given ttl. Failures are never
// cached. A ttl of zero or less bypasses the cache entirely.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, cache.ErrInvalidKey
	}
	if ttl <= 0 {
		return compute(ctx)
	}

	if value, found, err := c.Get(ctx, key); err == nil && found {
		return value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.Set(ctx, key, value, cache.SetOptions{TTL: ttl}); err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.client.Del(ctx, c.prefixKey(key)).Err(); err != nil {
		return c.wrapError(err)
	}

	return nil
}

// Exists checks if a key exists in the cache.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	result, err := c.client.Exists(ctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, c.wrapError(err)
	}

	return result > 0, nil
}

// Clear removes all entries with the cache prefix.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pattern := c.keyPrefix + "cache:*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		// Delete in batches of 100
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return c.wrapError(err)
			}
			keys = keys[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return c.wrapError(err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return c.wrapError(err)
		}
	}

	return nil
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		// Size, Evictions and MaxSize are not tracked for Redis
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for advanced operations.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// wrapError wraps Redis errors with domain errors.
func (c *Cache) wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(cache.ErrOperationTimeout, err)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(cache.ErrOperationTimeout, err)
	}

	return err
}

// Ensure Cache implements cache.Cache, cache.Computer and cache.StatsProvider
var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.Computer      = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
