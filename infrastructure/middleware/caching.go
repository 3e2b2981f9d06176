package middleware

import (
	"context"

	"github.com/felixgeelhaar/datakit/domain/cache"
	"github.com/felixgeelhaar/datakit/domain/middleware"
	"github.com/felixgeelhaar/datakit/domain/operation"
)

// Caching returns middleware that serves repeated read calls from the
// computer. Mutating calls and calls without a TTL pass straight through.
// The cache key is derived from the operation name and arguments and is
// recorded on the execution context either way.
func Caching(computer cache.Computer) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (any, error) {
			execCtx.Key = operation.Key(execCtx.Operation, execCtx.Args)

			if computer == nil || execCtx.Mutating || execCtx.TTL <= 0 {
				return next(ctx, execCtx)
			}

			return computer.GetOrCompute(ctx, execCtx.Key, execCtx.TTL, func(ctx context.Context) (any, error) {
				return next(ctx, execCtx)
			})
		}
	}
}
