package operation

import (
	"context"
	"errors"
	"fmt"
)

// Class categorizes an operation failure for retry eligibility.
type Class string

const (
	// ClassTransient marks failures that may succeed on a later attempt.
	ClassTransient Class = "transient"

	// ClassPermanent marks failures that will not be fixed by retrying.
	ClassPermanent Class = "permanent"
)

// Sentinel errors for the wrapper layers.
var (
	// ErrResourceUnavailable is returned when a store handle could not be
	// acquired. The resource scope never retries; the retry controller may.
	ErrResourceUnavailable = errors.New("store handle unavailable")

	// ErrCommitFailed is returned when a transaction commit fails.
	ErrCommitFailed = errors.New("transaction commit failed")

	// ErrRollbackFailed is returned when a transaction rollback fails.
	// It is secondary: the error that triggered the rollback still propagates.
	ErrRollbackFailed = errors.New("transaction rollback failed")

	// ErrCancelled is returned when the caller cancels an in-flight call,
	// including cancellation during a retry backoff suspension.
	ErrCancelled = errors.New("operation cancelled")

	// ErrRateLimited is returned when an operation is throttled.
	ErrRateLimited = errors.New("operation rate limited")
)

// Error is an operation failure carrying a retry classification.
// Layers inspect the class with ClassOf, never error strings.
type Error struct {
	Class Class
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("operation failed (%s): %v", e.Class, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable operation failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: ClassTransient, Err: err}
}

// Permanent wraps err as a non-retryable operation failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: ClassPermanent, Err: err}
}

// ClassOf reports the retry class of err. Unclassified errors are treated
// as permanent so that only failures explicitly marked transient (or known
// transient sentinels) are ever retried.
func ClassOf(err error) Class {
	if err == nil {
		return ClassPermanent
	}

	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Class
	}

	// A fresh attempt acquires a fresh handle, so acquisition failures and
	// throttling are worth another attempt after backoff.
	if errors.Is(err, ErrResourceUnavailable) || errors.Is(err, ErrRateLimited) {
		return ClassTransient
	}

	return ClassPermanent
}

// IsCancelled reports whether err represents caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
