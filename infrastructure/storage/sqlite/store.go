package sqlite

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/datakit/domain/store"
)

// Factory hands out SQLite connection handles from a shared pool.
type Factory struct {
	db *sql.DB
}

// NewFactory opens the database and returns a handle factory.
func NewFactory(cfg Config, opts ...Option) (*Factory, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Factory{db: db}, nil
}

// NewFactoryFromDB wraps an already opened database.
func NewFactoryFromDB(db *sql.DB) *Factory {
	return &Factory{db: db}
}

// Acquire checks a connection out of the pool.
func (f *Factory) Acquire(ctx context.Context) (store.Handle, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{conn: conn}, nil
}

// Close closes the underlying database.
func (f *Factory) Close() error {
	return f.db.Close()
}

// DB returns the underlying database for migrations and direct access.
func (f *Factory) DB() *sql.DB {
	return f.db
}

// Handle is a single pooled connection. Statements route through the open
// transaction when one exists.
type Handle struct {
	conn     *sql.Conn
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

	t, err := h.conn.BeginTx(ctx, nil)
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
		_ = h.active.tx.Rollback()
		h.active = nil
	}
	return h.conn.Close()
}

// Exec runs a statement, inside the open transaction when one exists.
func (h *Handle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, store.ErrHandleReleased
	}
	if h.active != nil {
		return h.active.tx.ExecContext(ctx, query, args...)
	}
	return h.conn.ExecContext(ctx, query, args...)
}

// Query runs a query, inside the open transaction when one exists.
func (h *Handle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, store.ErrHandleReleased
	}
	if h.active != nil {
		return h.active.tx.QueryContext(ctx, query, args...)
	}
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRow runs a single-row query, inside the open transaction when one
// exists.
func (h *Handle) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active != nil {
		return h.active.tx.QueryRowContext(ctx, query, args...)
	}
	return h.conn.QueryRowContext(ctx, query, args...)
}

// Tx wraps a database/sql transaction.
type Tx struct {
	handle *Handle
	tx     *sql.Tx
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
	return t.tx.Commit()
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
	return t.tx.Rollback()
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
