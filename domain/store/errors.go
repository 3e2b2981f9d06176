package store

import "errors"

// Domain errors for store handles and transactions.
var (
	// ErrTxInProgress is returned when Begin is called on a handle that
	// already has an open transaction.
	ErrTxInProgress = errors.New("store: transaction already in progress")

	// ErrTxClosed is returned when Commit or Rollback is called on a
	// transaction that has already terminated.
	ErrTxClosed = errors.New("store: transaction already closed")

	// ErrHandleReleased is returned when a released handle is used.
	ErrHandleReleased = errors.New("store: handle already released")
)
