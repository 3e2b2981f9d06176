// Package postgres provides a PostgreSQL-backed store factory over pgxpool.
package postgres

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/datakit/domain/store"
)

// Factory hands out PostgreSQL connection handles from a pgx pool.
type Factory struct {
	pool *pgxpool.Pool
}

// NewFactory connects to the database and returns a handle factory.
func NewFactory(ctx context.Context, dsn string) (*Factory, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Factory{pool: pool}, nil
}

// NewFactoryFromPool wraps an existing pool.
func NewFactoryFromPool(pool *pgxpool.Pool) *Factory {
	return &Factory{pool: pool}
}

// Acquire checks a connection out of the pool.
func (f *Factory) Acquire(ctx context.Context) (store.Handle, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{conn: conn}, nil
}

// Close closes the pool.
func (f *Factory) Close() {
	f.pool.Close()
}

// Pool returns the underlying pool for migrations and direct access.
func (f *Factory) Pool() *pgxpool.Pool {
	return f.pool
}

// Handle is a single pooled connection. Statements route through the open
// transaction when one exists.
type Handle struct {
	conn     *pgxpool.Conn
	mu       sync.Mutex
	released bool
	active   *Tx
}

// Begin opens a transaction on the connection.
func (h *Handle) Begin(ctx context.Context) (store.Tx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, store.ErrHandleReleased
	}
	if h.active != nil {
		return nil, store.ErrTxInProgress
	}

	t, err := h.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	h.active = &Tx{handle: h, tx: t}
	return h.active, nil
}

// Release returns the connection to the pool. An open transaction is
// rolled back first.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return store.ErrHandleReleased
	}
	h.released = true

	if h.active != nil {
		_ = h.active.tx.Rollback(context.Background())
		h.active = nil
	}
	h.conn.Release()
	return nil
}

// Exec runs a statement, inside the open transaction when one exists.
func (h *Handle) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return pgconn.CommandTag{}, store.ErrHandleReleased
	}
	if h.active != nil {
		return h.active.tx.Exec(ctx, sql, args...)
	}
	return h.conn.Exec(ctx, sql, args...)
}

// Query runs a query, inside the open transaction when one exists.
func (h *Handle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, store.ErrHandleReleased
	}
	if h.active != nil {
		return h.active.tx.Query(ctx, sql, args...)
	}
	return h.conn.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query, inside the open transaction when one
// exists.
func (h *Handle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active != nil {
		return h.active.tx.QueryRow(ctx, sql, args...)
	}
	return h.conn.QueryRow(ctx, sql, args...)
}

// Tx wraps a pgx transaction.
type Tx struct {
	handle *Handle
	tx     pgx.Tx
	mu     sync.Mutex
	done   bool
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return store.ErrTxClosed
	}
	t.done = true
	t.detach()
	return t.tx.Commit(ctx)
}

// Rollback discards the transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return store.ErrTxClosed
	}
	t.done = true
	t.detach()
	return t.tx.Rollback(ctx)
}

func (t *Tx) detach() {
	t.handle.mu.Lock()
	if t.handle.active == t {
		t.handle.active = nil
	}
	t.handle.mu.Unlock()
}

// Ensure the types satisfy the store contracts
var (
	_ store.Factory = (*Factory)(nil)
	_ store.Handle  = (*Handle)(nil)
	_ store.Tx      = (*Tx)(nil)
)
