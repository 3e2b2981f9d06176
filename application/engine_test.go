package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/datakit/application"
	"github.com/felixgeelhaar/datakit/domain/operation"
	"github.com/felixgeelhaar/datakit/domain/store"
	cachemem "github.com/felixgeelhaar/datakit/infrastructure/cache/memory"
	"github.com/felixgeelhaar/datakit/infrastructure/resilience"
	"github.com/felixgeelhaar/datakit/infrastructure/retry"
	storemem "github.com/felixgeelhaar/datakit/infrastructure/storage/memory"
)

func fastRetry(attempts int) *retry.Policy {
	return &retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Classes:     []operation.Class{operation.ClassTransient},
	}
}

// countingFactory wraps a DB and fails the first failures acquisitions.
type countingFactory struct {
	db       *storemem.DB
	mu       sync.Mutex
	failures int
	acquires int
}

func (f *countingFactory) Acquire(ctx context.Context) (store.Handle, error) {
	f.mu.Lock()
	f.acquires++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return nil, errors.New("pool exhausted")
	}
	return f.db.Acquire(ctx)
}

func (f *countingFactory) Acquires() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires
}

func TestEngine_ReadCaching(t *testing.T) {
	t.Parallel()

	t.Run("repeated read computes once within ttl", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db, application.WithCache(cachemem.NewStore()))

		var bodyCalls int
		getUser := engine.Wrap(application.Config{
			Name: "get_user_by_id",
			TTL:  time.Minute,
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			bodyCalls++
			return "alice", nil
		})

		for i := 0; i < 3; i++ {
			v, err := getUser.Call(context.Background(), map[string]any{"id": 1})
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if v != "alice" {
				t.Errorf("Call() = %v, want alice", v)
			}
		}
		if bodyCalls != 1 {
			t.Errorf("body calls = %d, want 1", bodyCalls)
		}
	})

	t.Run("cache hit acquires no handle", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db, application.WithCache(cachemem.NewStore()))

		getUser := engine.Wrap(application.Config{
			Name: "get_user_by_id",
			TTL:  time.Minute,
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			return "alice", nil
		})

		for i := 0; i < 5; i++ {
			if _, err := getUser.Call(context.Background(), map[string]any{"id": 1}); err != nil {
				t.Fatalf("Call() error = %v", err)
			}
		}
		if db.AcquireCount() != 1 {
			t.Errorf("AcquireCount() = %d, want 1", db.AcquireCount())
		}
	})

	t.Run("zero ttl bypasses the cache", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db, application.WithCache(cachemem.NewStore()))

		var bodyCalls int
		listUsers := engine.Wrap(application.Config{
			Name: "list_users",
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			bodyCalls++
			return nil, nil
		})

		for i := 0; i < 2; i++ {
			if _, err := listUsers.Call(context.Background(), nil); err != nil {
				t.Fatalf("Call() error = %v", err)
			}
		}
		if bodyCalls != 2 {
			t.Errorf("body calls = %d, want 2", bodyCalls)
		}
	})

	t.Run("concurrent reads share the cache", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db, application.WithCache(cachemem.NewStore()))

		getUser := engine.Wrap(application.Config{
			Name: "get_user_by_id",
			TTL:  time.Minute,
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			return "alice", nil
		})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if v, err := getUser.Call(context.Background(), map[string]any{"id": 1}); err != nil || v != "alice" {
					t.Errorf("Call() = %v, %v", v, err)
				}
			}()
		}
		wg.Wait()
	})
}

func TestEngine_Retrying(t *testing.T) {
	t.Parallel()

	t.Run("fail twice then succeed takes three attempts", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db)

		var bodyCalls int
		flaky := engine.Wrap(application.Config{
			Name:  "flaky_read",
			Retry: fastRetry(3),
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			bodyCalls++
			if bodyCalls < 3 {
				return nil, operation.Transient(errors.New("db locked"))
			}
			return "finally", nil
		})

		v, err := flaky.Call(context.Background(), nil)
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if v != "finally" {
			t.Errorf("Call() = %v, want finally", v)
		}
		if bodyCalls != 3 {
			t.Errorf("body calls = %d, want 3", bodyCalls)
		}
	})

	t.Run("each attempt acquires a fresh handle", func(t *testing.T) {
		t.Parallel()

		factory := &countingFactory{db: storemem.NewDB()}
		engine := application.NewEngine(factory)

		var bodyCalls int
		flaky := engine.Wrap(application.Config{
			Name:  "flaky_read",
			Retry: fastRetry(3),
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			bodyCalls++
			return nil, operation.Transient(errors.New("db locked"))
		})

		if _, err := flaky.Call(context.Background(), nil); err == nil {
			t.Fatal("Call() expected error")
		}
		if bodyCalls != 3 {
			t.Errorf("body calls = %d, want 3", bodyCalls)
		}
		if factory.Acquires() != 3 {
			t.Errorf("acquires = %d, want 3", factory.Acquires())
		}
	})

	t.Run("acquire failures retry on a fresh handle", func(t *testing.T) {
		t.Parallel()

		factory := &countingFactory{db: storemem.NewDB(), failures: 2}
		engine := application.NewEngine(factory)

		getUser := engine.Wrap(application.Config{
			Name:  "get_user_by_id",
			Retry: fastRetry(3),
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			return "alice", nil
		})

		v, err := getUser.Call(context.Background(), nil)
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if v != "alice" {
			t.Errorf("Call() = %v, want alice", v)
		}
		if factory.Acquires() != 3 {
			t.Errorf("acquires = %d, want 3", factory.Acquires())
		}
	})

	t.Run("permanent failure is not retried", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db)

		var bodyCalls int
		broken := engine.Wrap(application.Config{
			Name:  "broken_read",
			Retry: fastRetry(5),
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			bodyCalls++
			return nil, operation.Permanent(errors.New("no such table"))
		})

		if _, err := broken.Call(context.Background(), nil); err == nil {
			t.Fatal("Call() expected error")
		}
		if bodyCalls != 1 {
			t.Errorf("body calls = %d, want 1", bodyCalls)
		}
	})

	t.Run("exhausted retries surface the last error", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db)

		last := operation.Transient(errors.New("still locked"))
		flaky := engine.Wrap(application.Config{
			Name:  "flaky_read",
			Retry: fastRetry(3),
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			return nil, last
		})

		_, err := flaky.Call(context.Background(), nil)
		if !errors.Is(err, last) {
			t.Errorf("Call() error = %v, want wrapped %v", err, last)
		}
	})
}

func TestEngine_Transactions(t *testing.T) {
	t.Parallel()

	t.Run("mutating operation commits on success", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db)

		createUser := engine.Wrap(application.Config{
			Name:     "create_user",
			Mutating: true,
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			mh := h.(*storemem.Handle)
			if err := mh.Set(ctx, "user:1", args["name"]); err != nil {
				return nil, err
			}
			return nil, nil
		})

		if _, err := createUser.Call(context.Background(), map[string]any{"name": "alice"}); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if v := db.Snapshot()["user:1"]; v != "alice" {
			t.Errorf("Snapshot()[user:1] = %v, want alice", v)
		}
	})

	t.Run("failed mutation leaves the store unchanged", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db)
		boom := errors.New("email already taken")

		createUser := engine.Wrap(application.Config{
			Name:     "create_user",
			Mutating: true,
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			mh := h.(*storemem.Handle)
			if err := mh.Set(ctx, "user:1", "alice"); err != nil {
				return nil, err
			}
			return nil, boom
		})

		_, err := createUser.Call(context.Background(), nil)
		if !errors.Is(err, boom) {
			t.Fatalf("Call() error = %v, want %v", err, boom)
		}
		if db.Len() != 0 {
			t.Errorf("Len() = %d, rolled-back write survived", db.Len())
		}
	})

	t.Run("mutating operation never reads the cache", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db, application.WithCache(cachemem.NewStore()))

		var bodyCalls int
		updateUser := engine.Wrap(application.Config{
			Name:     "update_user",
			TTL:      time.Minute,
			Mutating: true,
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			bodyCalls++
			return nil, nil
		})

		for i := 0; i < 2; i++ {
			if _, err := updateUser.Call(context.Background(), map[string]any{"id": 1}); err != nil {
				t.Fatalf("Call() error = %v", err)
			}
		}
		if bodyCalls != 2 {
			t.Errorf("body calls = %d, want 2", bodyCalls)
		}
	})

	t.Run("retried mutation uses a fresh transaction per attempt", func(t *testing.T) {
		t.Parallel()

		db := storemem.NewDB()
		engine := application.NewEngine(db)

		var bodyCalls int
		createUser := engine.Wrap(application.Config{
			Name:     "create_user",
			Retry:    fastRetry(3),
			Mutating: true,
		}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
			bodyCalls++
			mh := h.(*storemem.Handle)
			if err := mh.Set(ctx, "user:1", "alice"); err != nil {
				return nil, err
			}
			if bodyCalls < 3 {
				return nil, operation.Transient(errors.New("db locked"))
			}
			return nil, nil
		})

		if _, err := createUser.Call(context.Background(), nil); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if bodyCalls != 3 {
			t.Errorf("body calls = %d, want 3", bodyCalls)
		}
		// Only the final, successful attempt committed.
		if db.Len() != 1 {
			t.Errorf("Len() = %d, want 1", db.Len())
		}
		if db.AcquireCount() != 3 {
			t.Errorf("AcquireCount() = %d, want 3", db.AcquireCount())
		}
	})
}

func TestEngine_Guard(t *testing.T) {
	t.Parallel()

	db := storemem.NewDB()
	engine := application.NewEngine(db,
		application.WithGuard(resilience.NewGuardWithOptions(resilience.WithTimeout(time.Second))),
	)

	getUser := engine.Wrap(application.Config{
		Name: "get_user_by_id",
	}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
		return "alice", nil
	})

	v, err := getUser.Call(context.Background(), map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if v != "alice" {
		t.Errorf("Call() = %v, want alice", v)
	}
}

func TestEngine_Cancellation(t *testing.T) {
	t.Parallel()

	db := storemem.NewDB()
	engine := application.NewEngine(db)

	getUser := engine.Wrap(application.Config{
		Name:  "get_user_by_id",
		Retry: fastRetry(3),
	}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
		t.Error("body should not run")
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := getUser.Call(ctx, nil)
	if !errors.Is(err, operation.ErrCancelled) {
		t.Errorf("Call() error = %v, want ErrCancelled", err)
	}
}
