package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultGuardConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultGuardConfig()
	if cfg.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", cfg.MaxConcurrent)
	}
	if cfg.BreakerThreshold != 5 {
		t.Errorf("BreakerThreshold = %d, want 5", cfg.BreakerThreshold)
	}
	if cfg.BreakerTimeout != 30*time.Second {
		t.Errorf("BreakerTimeout = %v, want 30s", cfg.BreakerTimeout)
	}
	if cfg.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", cfg.DefaultTimeout)
	}
}

func TestGuard_Execute(t *testing.T) {
	t.Parallel()

	t.Run("passes through successful calls", func(t *testing.T) {
		t.Parallel()

		g := NewDefaultGuard()
		result, err := g.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if result != "ok" {
			t.Errorf("Execute() = %v, want ok", result)
		}
	})

	t.Run("propagates errors", func(t *testing.T) {
		t.Parallel()

		g := NewDefaultGuard()
		boom := errors.New("downstream failure")
		_, err := g.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Execute() error = %v, want %v", err, boom)
		}
	})

	t.Run("bulkhead limits concurrency", func(t *testing.T) {
		t.Parallel()

		g := NewGuardWithOptions(WithMaxConcurrent(2), WithTimeout(time.Second))

		var current, peak atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = g.Execute(context.Background(), func(ctx context.Context) (any, error) {
					n := current.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					current.Add(-1)
					return nil, nil
				})
			}()
		}
		wg.Wait()

		if peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
		}
	})

	t.Run("breaker opens after consecutive failures", func(t *testing.T) {
		t.Parallel()

		g := NewGuardWithOptions(
			WithBreakerThreshold(3),
			WithBreakerTimeout(time.Minute),
		)

		boom := errors.New("backend down")
		var calls int
		for i := 0; i < 10; i++ {
			_, _ = g.Execute(context.Background(), func(ctx context.Context) (any, error) {
				calls++
				return nil, boom
			})
		}

		// Once open, calls are rejected without invoking fn.
		if calls >= 10 {
			t.Errorf("calls = %d, breaker never opened", calls)
		}
	})

	t.Run("timeout cancels slow calls", func(t *testing.T) {
		t.Parallel()

		g := NewGuardWithOptions(WithTimeout(20 * time.Millisecond))

		_, err := g.Execute(context.Background(), func(ctx context.Context) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return "late", nil
			}
		})
		if err == nil {
			t.Fatal("Execute() expected timeout error")
		}
	})
}
