package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/datakit/domain/cache"
)

// newUnreachableCache builds a cache whose client never dials. Serialization
// and key validation happen before any network call, so these paths are
// testable without a server.
func newUnreachableCache() *Cache {
	return NewCacheFromClient(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), "test:")
}

func TestSet_EmptyKey(t *testing.T) {
	t.Parallel()

	c := newUnreachableCache()

	err := c.Set(context.Background(), "", "value", cache.SetOptions{TTL: time.Minute})
	if !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Set() error = %v, want ErrInvalidKey", err)
	}
}

func TestSet_UnencodableValue(t *testing.T) {
	t.Parallel()

	c := newUnreachableCache()

	err := c.Set(context.Background(), "key", make(chan int), cache.SetOptions{TTL: time.Minute})
	if !errors.Is(err, cache.ErrInvalidValue) {
		t.Errorf("Set() error = %v, want ErrInvalidValue", err)
	}
	if errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Set() error = %v, should not match ErrInvalidKey", err)
	}
}

func TestPrefixKey(t *testing.T) {
	t.Parallel()

	c := newUnreachableCache()

	if got := c.prefixKey("user:1"); got != "test:cache:user:1" {
		t.Errorf("prefixKey() = %s, want test:cache:user:1", got)
	}
}
