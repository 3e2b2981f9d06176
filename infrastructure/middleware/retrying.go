package middleware

import (
	"context"

	"github.com/felixgeelhaar/datakit/domain/middleware"
	"github.com/felixgeelhaar/datakit/infrastructure/retry"
)

// Retrying returns middleware that re-runs the downstream chain under the
// retrier's policy. Each attempt carries its one-based number on the
// execution context so downstream middleware can tell attempts apart.
func Retrying(r *retry.Retrier) middleware.Middleware {
	if r == nil {
		return middleware.Noop()
	}
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (any, error) {
			return r.Do(ctx, func(ctx context.Context, attempt int) (any, error) {
				execCtx.Attempt = attempt
				return next(ctx, execCtx)
			})
		}
	}
}
