// Package memory provides an in-memory key-value store with transactional
// handles. It is the default backend for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/datakit/domain/store"
)

// DB is an in-memory key-value database. All handles share one data map;
// a handle's open transaction buffers writes until commit.
type DB struct {
	mu       sync.RWMutex
	data     map[string]any
	acquires atomic.Int64
}

// NewDB creates an empty database.
func NewDB() *DB {
	return &DB{data: make(map[string]any)}
}

// Acquire returns a new handle on the database.
func (db *DB) Acquire(ctx context.Context) (store.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.acquires.Add(1)
	return &Handle{db: db}, nil
}

// AcquireCount reports how many handles have been acquired. Tests use it to
// verify resource bracketing.
func (db *DB) AcquireCount() int64 {
	return db.acquires.Load()
}

// Snapshot returns a copy of the committed data.
func (db *DB) Snapshot() map[string]any {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[string]any, len(db.data))
	for k, v := range db.data {
		out[k] = v
	}
	return out
}

// Len returns the number of committed keys.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.data)
}

// Handle is a connection to the database. A handle holds at most one open
// transaction; reads and writes route through it while it is open.
type Handle struct {
	db       *DB
	mu       sync.Mutex
	released bool
	active   *Tx
	begins   int64
}

// Begin opens a transaction on the handle.
func (h *Handle) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, store.ErrHandleReleased
	}
	if h.active != nil {
		return nil, store.ErrTxInProgress
	}

	h.begins++
	h.active = &Tx{
		handle:  h,
		writes:  make(map[string]any),
		deletes: make(map[string]struct{}),
	}
	return h.active, nil
}

// BeginCount reports how many transactions the handle has opened.
func (h *Handle) BeginCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.begins
}

// Release closes the handle. An open transaction is rolled back.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return store.ErrHandleReleased
	}
	h.released = true

	if h.active != nil {
		h.active.done = true
		h.active = nil
	}
	return nil
}

// Get reads a key, observing buffered writes of an open transaction.
func (h *Handle) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, false, store.ErrHandleReleased
	}

	if t := h.active; t != nil {
		if _, deleted := t.deletes[key]; deleted {
			return nil, false, nil
		}
		if v, ok := t.writes[key]; ok {
			return v, true, nil
		}
	}

	h.db.mu.RLock()
	defer h.db.mu.RUnlock()
	v, ok := h.db.data[key]
	return v, ok, nil
}

// Set writes a key. Inside a transaction the write is buffered until
// commit; outside it applies immediately.
func (h *Handle) Set(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return store.ErrHandleReleased
	}

	if t := h.active; t != nil {
		delete(t.deletes, key)
		t.writes[key] = value
		return nil
	}

	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	h.db.data[key] = value
	return nil
}

// Delete removes a key, buffered when a transaction is open.
func (h *Handle) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return store.ErrHandleReleased
	}

	if t := h.active; t != nil {
		delete(t.writes, key)
		t.deletes[key] = struct{}{}
		return nil
	}

	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	delete(h.db.data, key)
	return nil
}

// Keys lists all visible keys in sorted order.
func (h *Handle) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, store.ErrHandleReleased
	}

	seen := make(map[string]struct{})

	h.db.mu.RLock()
	for k := range h.db.data {
		seen[k] = struct{}{}
	}
	h.db.mu.RUnlock()

	if t := h.active; t != nil {
		for k := range t.writes {
			seen[k] = struct{}{}
		}
		for k := range t.deletes {
			delete(seen, k)
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Tx buffers writes and deletes until commit.
type Tx struct {
	handle  *Handle
	writes  map[string]any
	deletes map[string]struct{}
	done    bool
}

// Commit applies the buffered changes to the database.
func (t *Tx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h := t.handle
	h.mu.Lock()
	defer h.mu.Unlock()

	if t.done {
		return store.ErrTxClosed
	}
	t.done = true
	h.active = nil

	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	for k, v := range t.writes {
		h.db.data[k] = v
	}
	for k := range t.deletes {
		delete(h.db.data, k)
	}
	return nil
}

// Rollback discards the buffered changes.
func (t *Tx) Rollback(ctx context.Context) error {
	h := t.handle
	h.mu.Lock()
	defer h.mu.Unlock()

	if t.done {
		return store.ErrTxClosed
	}
	t.done = true
	h.active = nil
	return nil
}

// Ensure the types satisfy the store contracts
var (
	_ store.Factory = (*DB)(nil)
	_ store.Handle  = (*Handle)(nil)
	_ store.Tx      = (*Tx)(nil)
)
