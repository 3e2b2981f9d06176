package middleware

import (
	"context"

	"github.com/felixgeelhaar/datakit/domain/middleware"
	"github.com/felixgeelhaar/datakit/domain/store"
	"github.com/felixgeelhaar/datakit/infrastructure/scope"
	"github.com/felixgeelhaar/datakit/infrastructure/tx"
)

// DataAccess returns middleware that brackets the downstream handler with
// a store handle, and with a transaction when the call mutates. The handle
// lives on the execution context only while the bracket is open, so a
// cached call upstream never touches the store, and every retry attempt
// gets a fresh handle and transaction.
func DataAccess(factory store.Factory) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (any, error) {
			return scope.WithResource(ctx, factory, func(ctx context.Context, h store.Handle) (any, error) {
				execCtx.Handle = h
				defer func() { execCtx.Handle = nil }()

				if !execCtx.Mutating {
					return next(ctx, execCtx)
				}

				return tx.WithTransaction(ctx, h, func(ctx context.Context) (any, error) {
					return next(ctx, execCtx)
				})
			})
		}
	}
}
