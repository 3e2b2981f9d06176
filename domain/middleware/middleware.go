// Package middleware provides composable middleware for operation execution.
package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/datakit/domain/store"
)

// ExecutionContext contains all information needed for middleware decisions.
type ExecutionContext struct {
	// CallID is the unique identifier for this call, used for log correlation.
	CallID string
	// Operation is the name of the operation being executed.
	Operation string
	// Args is the argument set for the operation.
	Args map[string]any
	// Key is the cache key, derived by the caching middleware on first use.
	Key string
	// TTL is the cache expiration time; zero disables caching for this call.
	TTL time.Duration
	// Mutating marks operations that require a transaction.
	Mutating bool
	// Attempt is the current attempt number, maintained by the retry layer.
	Attempt int
	// Handle is the store handle, set by the data-access layer for the body.
	Handle store.Handle
}

// Handler executes an operation and returns its result.
type Handler func(ctx context.Context, execCtx *ExecutionContext) (any, error)

// Middleware wraps a Handler with additional behavior.
// Middleware can:
// - Execute code before the next handler
// - Execute code after the next handler
// - Short-circuit by not calling next
// - Modify the execution context
// - Transform results or errors
type Middleware func(next Handler) Handler

// Chain composes multiple middleware into a single middleware.
// Middleware are executed in the order provided, with each wrapping the next.
// For example, Chain(A, B, C) produces: A -> B -> C -> handler
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		// Build chain from right to left so execution is left to right
		handler := final
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Noop returns a middleware that does nothing, just passes through.
func Noop() Middleware {
	return func(next Handler) Handler {
		return next
	}
}
