// Package middleware provides the built-in middleware implementations that
// the wrapper composes around data operations.
package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/datakit/domain/middleware"
	"github.com/felixgeelhaar/datakit/infrastructure/logging"
)

// LoggingConfig configures the logging middleware.
type LoggingConfig struct {
	// LogArgs logs the operation arguments (may contain sensitive data).
	LogArgs bool
}

// Logging returns middleware that logs each call with its outcome and
// duration.
func Logging(cfg LoggingConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (any, error) {
			start := time.Now()

			entry := logging.Info().
				Add(logging.CallID(execCtx.CallID)).
				Add(logging.Op(execCtx.Operation)).
				Add(logging.Mutating(execCtx.Mutating))

			if cfg.LogArgs && len(execCtx.Args) > 0 {
				entry = entry.Add(logging.Str("args", fmt.Sprintf("%v", execCtx.Args)))
			}

			entry.Msg("executing operation")

			result, err := next(ctx, execCtx)
			duration := time.Since(start)

			if err != nil {
				logging.Error().
					Add(logging.CallID(execCtx.CallID)).
					Add(logging.Op(execCtx.Operation)).
					Add(logging.Attempt(execCtx.Attempt)).
					Add(logging.ErrorField(err)).
					Add(logging.Duration(duration)).
					Msg("operation failed")
			} else {
				logging.Info().
					Add(logging.CallID(execCtx.CallID)).
					Add(logging.Op(execCtx.Operation)).
					Add(logging.Duration(duration)).
					Msg("operation completed")
			}

			return result, err
		}
	}
}
