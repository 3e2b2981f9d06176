package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/datakit/application"
	"github.com/felixgeelhaar/datakit/domain/cache"
	"github.com/felixgeelhaar/datakit/domain/operation"
	"github.com/felixgeelhaar/datakit/domain/store"
	cachemem "github.com/felixgeelhaar/datakit/infrastructure/cache/memory"
	"github.com/felixgeelhaar/datakit/infrastructure/config"
	"github.com/felixgeelhaar/datakit/infrastructure/logging"
	"github.com/felixgeelhaar/datakit/infrastructure/retry"
	storemem "github.com/felixgeelhaar/datakit/infrastructure/storage/memory"
)

// newDemoCmd creates the demo command. It seeds an in-memory store with a
// small users and bookings dataset and exercises the wrapped operations:
// cached reads, concurrent reads, a transactional update and a rollback.
func (a *App) newDemoCmd() *cobra.Command {
	var (
		configPath string
		policy     string
		capacity   int
		ttl        time.Duration
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the wrapped-operation demo against an in-memory store",
		RunE: func(cmd *cobra.Command, args []string) error {
			retryPolicy := retry.DefaultPolicy()
			if configPath != "" {
				cfg, err := config.NewLoader().LoadFile(configPath)
				if err != nil {
					return err
				}
				// Flags set explicitly win over the config file.
				if !cmd.Flags().Changed("policy") {
					policy = cfg.Cache.Policy
				}
				if !cmd.Flags().Changed("capacity") {
					capacity = cfg.Cache.Capacity
				}
				if !cmd.Flags().Changed("ttl") {
					ttl = cfg.Cache.DefaultTTL.Duration
				}
				if !cmd.Flags().Changed("log-level") {
					logLevel = cfg.Logging.Level
				}
				retryPolicy.MaxAttempts = cfg.Retry.MaxAttempts
				retryPolicy.BaseDelay = cfg.Retry.BaseDelay.Duration
				retryPolicy.MaxDelay = cfg.Retry.MaxDelay.Duration
				retryPolicy.JitterFraction = cfg.Retry.JitterFraction
			}
			logging.Init(logging.Config{Level: logLevel, Format: "console"})
			return a.runDemo(cmd.Context(), policy, capacity, ttl, retryPolicy)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "load cache, retry and logging settings from a config file")
	cmd.Flags().StringVar(&policy, "policy", "lru", "cache eviction policy (lru, fifo, lfu)")
	cmd.Flags().IntVar(&capacity, "capacity", 100, "cache capacity")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*time.Second, "cache TTL for reads")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	return cmd
}

func (a *App) runDemo(ctx context.Context, policyName string, capacity int, ttl time.Duration, retryPolicy retry.Policy) error {
	policy, err := cachemem.PolicyByName(cache.PolicyName(policyName))
	if err != nil {
		return err
	}

	db := storemem.NewDB()
	cacheStore := cachemem.NewStore(
		cachemem.WithCapacity(capacity),
		cachemem.WithPolicy(policy),
	)
	engine := application.NewEngine(db, application.WithCache(cacheStore))

	createUser := engine.Wrap(application.Config{
		Name:     "create_user",
		Mutating: true,
	}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
		mh := h.(*storemem.Handle)
		key := fmt.Sprintf("user:%v", args["id"])
		return nil, mh.Set(ctx, key, map[string]any{
			"name":  args["name"],
			"email": args["email"],
		})
	})

	createBooking := engine.Wrap(application.Config{
		Name:     "create_booking",
		Mutating: true,
	}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
		mh := h.(*storemem.Handle)
		key := fmt.Sprintf("booking:%v", args["id"])
		return nil, mh.Set(ctx, key, map[string]any{
			"user_id": args["user_id"],
			"hotel":   args["hotel"],
		})
	})

	getUser := engine.Wrap(application.Config{
		Name:  "get_user_by_id",
		TTL:   ttl,
		Retry: &retryPolicy,
	}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
		mh := h.(*storemem.Handle)
		v, ok, err := mh.Get(ctx, fmt.Sprintf("user:%v", args["id"]))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, operation.Permanent(fmt.Errorf("user %v not found", args["id"]))
		}
		return v, nil
	})

	listBookings := engine.Wrap(application.Config{
		Name: "list_bookings",
		TTL:  ttl,
	}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
		mh := h.(*storemem.Handle)
		keys, err := mh.Keys(ctx)
		if err != nil {
			return nil, err
		}
		var bookings []any
		for _, key := range keys {
			if len(key) > 8 && key[:8] == "booking:" {
				v, _, err := mh.Get(ctx, key)
				if err != nil {
					return nil, err
				}
				bookings = append(bookings, v)
			}
		}
		return bookings, nil
	})

	updateEmail := engine.Wrap(application.Config{
		Name:     "update_user_email",
		Mutating: true,
	}, func(ctx context.Context, h store.Handle, args map[string]any) (any, error) {
		mh := h.(*storemem.Handle)
		key := fmt.Sprintf("user:%v", args["id"])
		v, ok, err := mh.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, operation.Permanent(fmt.Errorf("user %v not found", args["id"]))
		}
		user := v.(map[string]any)
		user["email"] = args["email"]
		return user, mh.Set(ctx, key, user)
	})

	// Seed
	seed := []map[string]any{
		{"id": 1, "name": "Alice", "email": "alice@example.com"},
		{"id": 2, "name": "Bob", "email": "bob@example.com"},
	}
	for _, u := range seed {
		if _, err := createUser.Call(ctx, u); err != nil {
			return err
		}
	}
	bookings := []map[string]any{
		{"id": 1, "user_id": 1, "hotel": "Seaside"},
		{"id": 2, "user_id": 2, "hotel": "Alpine"},
	}
	for _, b := range bookings {
		if _, err := createBooking.Call(ctx, b); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "seeded %d users, %d bookings\n", len(seed), len(bookings))

	// First read computes, second is served from cache.
	for i := 0; i < 2; i++ {
		user, err := getUser.Call(ctx, map[string]any{"id": 1})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "get_user_by_id(1) -> %v\n", user)
	}

	// Concurrent reads of both users.
	var wg sync.WaitGroup
	results := make([]any, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = getUser.Call(ctx, map[string]any{"id": i + 1})
		}(i)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	for i, r := range results {
		fmt.Fprintf(a.stdout, "concurrent get_user_by_id(%d) -> %v\n", i+1, r)
	}

	if _, err := listBookings.Call(ctx, nil); err != nil {
		return err
	}

	// Transactional update.
	updated, err := updateEmail.Call(ctx, map[string]any{"id": 2, "email": "bob@datakit.dev"})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "update_user_email(2) -> %v\n", updated)

	// A failing update rolls back.
	if _, err := updateEmail.Call(ctx, map[string]any{"id": 99, "email": "x@example.com"}); err != nil {
		fmt.Fprintf(a.stdout, "update_user_email(99) rolled back: %v\n", err)
	}

	stats := cacheStore.Stats()
	fmt.Fprintf(a.stdout, "cache: %d hits, %d misses, %d evictions, %d entries\n",
		stats.Hits, stats.Misses, stats.Evictions, stats.Size)
	return nil
}
