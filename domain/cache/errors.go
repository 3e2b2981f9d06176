package cache

import "errors"

// Domain errors for cache operations.
var (
	// ErrInvalidKey is returned when a key is invalid (e.g., empty).
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrInvalidValue is returned when a value cannot be serialized for
	// storage.
	ErrInvalidValue = errors.New("invalid cache value")

	// ErrUnknownPolicy is returned when an eviction policy name does not
	// match a known strategy.
	ErrUnknownPolicy = errors.New("unknown eviction policy")

	// ErrConnectionFailed is returned when connection to the cache backend fails.
	ErrConnectionFailed = errors.New("cache connection failed")

	// ErrOperationTimeout is returned when a cache operation times out.
	ErrOperationTimeout = errors.New("cache operation timeout")
)
