// Package memory provides the in-memory cache store with TTL-bounded entries
// and pluggable capacity eviction.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/datakit/domain/cache"
	"github.com/felixgeelhaar/datakit/infrastructure/logging"
)

// entry is a cached value with its access metadata. Entries are owned
// exclusively by the store and replaced wholesale on refresh.
type entry struct {
	value          any
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
	expiresAt      time.Time
}

// flight is an in-progress computation for a key. Waiters block on done and
// read value/err afterwards.
type flight struct {
	done  chan struct{}
	value any
	err   error
}

// Store is an in-memory implementation of cache.Cache and cache.Computer.
// A single mutex guards the entry map; lookup+hit-update and miss+insert+evict
// each run as one critical section, so at most one eviction decision is in
// flight at any time. Compute callbacks run outside the lock, with per-key
// in-flight tracking so concurrent misses on the same key compute once.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	flights   map[string]*flight
	capacity  int
	policy    cache.Policy
	now       func() time.Time
	hits      int64
	misses    int64
	evictions int64
}

// Option configures the store.
type Option func(*Store)

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// WithPolicy sets the eviction policy.
func WithPolicy(p cache.Policy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithClock injects the time source. Tests use this to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory cache store. Defaults: capacity 1000,
// LRU eviction, wall-clock time.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		flights:  make(map[string]*flight),
		capacity: 1000,
		policy:   LRU(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCompute returns the cached value for key if a valid entry exists,
// otherwise invokes compute and caches a successful result. Failures are
// never cached. Concurrent misses on the same key are deduplicated: one
// caller computes, the rest wait and share its result.
func (s *Store) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, cache.ErrInvalidKey
	}
	if ttl <= 0 {
		// Caching disabled for this call.
		return compute(ctx)
	}

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		if s.now().Sub(e.createdAt) < ttl {
			e.lastAccessedAt = s.now()
			e.accessCount++
			s.hits++
			value := e.value
			s.mu.Unlock()
			logging.Debug().Add(logging.Component("cache")).Add(logging.Key(key)).Msg("cache hit")
			return value, nil
		}
		// Lazy expiry: an expired entry is logically absent.
		delete(s.entries, key)
	}
	if f, ok := s.flights[key]; ok {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.done:
		}
		if f.err != nil {
			return nil, f.err
		}
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		return f.value, nil
	}
	f := &flight{done: make(chan struct{})}
	s.flights[key] = f
	s.misses++
	s.mu.Unlock()

	logging.Debug().Add(logging.Component("cache")).Add(logging.Key(key)).Msg("cache miss")

	value, err := compute(ctx)

	s.mu.Lock()
	delete(s.flights, key)
	if err == nil {
		s.insertLocked(key, value, ttl)
	}
	s.mu.Unlock()

	f.value, f.err = value, err
	close(f.done)

	if err != nil {
		return nil, err
	}
	return value, nil
}

// Get retrieves a value from the cache.
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false, nil
	}

	if s.expiredLocked(e) {
		delete(s.entries, key)
		s.misses++
		return nil, false, nil
	}

	e.lastAccessedAt = s.now()
	e.accessCount++
	s.hits++
	return e.value, true, nil
}

// Set stores a value in the cache.
func (s *Store) Set(ctx context.Context, key string, value any, opts cache.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(key, value, opts.TTL)
	return nil
}

// Delete removes a cached entry by key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Invalidate removes an entry unconditionally.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Exists checks if a valid entry exists for key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	return !s.expiredLocked(e), nil
}

// Clear removes all entries from the cache.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	return nil
}

// SweepExpired removes all entries whose expiration has elapsed and reports
// how many were removed. Callers may run it on a periodic cadence; the store
// also expires lazily on lookup.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for key, e := range s.entries {
		if s.expiredLocked(e) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		logging.Debug().Add(logging.Component("cache")).Add(logging.Int("removed", removed)).Msg("swept expired entries")
	}
	return removed
}

// Stats returns cache statistics.
func (s *Store) Stats() cache.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int64
	for _, e := range s.entries {
		if s.expiredLocked(e) {
			expired++
		}
	}

	return cache.Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Size:      int64(len(s.entries)),
		Expired:   expired,
		MaxSize:   int64(s.capacity),
	}
}

// Size returns the current number of entries.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// expiredLocked reports whether e has passed its expiry. Lock must be held.
func (s *Store) expiredLocked(e *entry) bool {
	if e.expiresAt.IsZero() {
		return false
	}
	return !s.now().Before(e.expiresAt)
}

// insertLocked replaces or inserts the entry for key, evicting one victim
// first if the store is at capacity. Lock must be held.
func (s *Store) insertLocked(key string, value any, ttl time.Duration) {
	_, exists := s.entries[key]
	if !exists && s.capacity > 0 && len(s.entries) >= s.capacity {
		s.evictLocked()
	}

	now := s.now()
	e := &entry{
		value:          value,
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    1,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
}

// evictLocked asks the policy for exactly one victim and removes it.
// A policy that names a key the store does not hold has broken the selection
// contract; that is a programmer error, so fail fast. Lock must be held.
func (s *Store) evictLocked() {
	infos := make([]cache.EntryInfo, 0, len(s.entries))
	for key, e := range s.entries {
		infos = append(infos, cache.EntryInfo{
			Key:            key,
			CreatedAt:      e.createdAt,
			LastAccessedAt: e.lastAccessedAt,
			AccessCount:    e.accessCount,
		})
	}

	victim, ok := s.policy.Victim(infos)
	if !ok {
		return
	}
	if _, held := s.entries[victim]; !held {
		panic("cache: eviction policy selected a key the store does not hold: " + victim)
	}

	delete(s.entries, victim)
	s.evictions++
	logging.Debug().
		Add(logging.Component("cache")).
		Add(logging.Key(victim)).
		Add(logging.Policy(string(s.policy.Name()))).
		Msg("evicted entry")
}

// Ensure Store implements cache.Cache, cache.Computer and cache.StatsProvider
var (
	_ cache.Cache         = (*Store)(nil)
	_ cache.Computer      = (*Store)(nil)
	_ cache.StatsProvider = (*Store)(nil)
)
