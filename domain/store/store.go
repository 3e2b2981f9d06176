// Package store defines the contracts for underlying data stores.
package store

import "context"

// Tx is an open transaction on a handle. Exactly one of Commit or Rollback
// terminates it; further calls return ErrTxClosed.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Handle is a scoped connection to an underlying store. Each handle is owned
// by exactly one call and must be released exactly once; no handle outlives
// the call that acquired it.
type Handle interface {
	// Begin opens a transaction on this handle. Writes through the handle
	// are routed through the open transaction until it terminates.
	Begin(ctx context.Context) (Tx, error)

	// Release returns the handle to the underlying store. An open
	// transaction is rolled back first.
	Release() error
}

// Factory supplies store handles on demand. Acquisition failures surface to
// callers as operation.ErrResourceUnavailable via the resource scope.
type Factory interface {
	Acquire(ctx context.Context) (Handle, error)
}
