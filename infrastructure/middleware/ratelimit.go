package middleware

import (
	"context"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/datakit/domain/middleware"
	"github.com/felixgeelhaar/datakit/domain/operation"
	"github.com/felixgeelhaar/datakit/infrastructure/logging"
)

// RateLimitScope defines the scope for rate limiting.
type RateLimitScope string

const (
	// ScopeGlobal applies rate limiting across all operations.
	ScopeGlobal RateLimitScope = "global"
	// ScopePerOperation applies rate limiting per operation name.
	ScopePerOperation RateLimitScope = "per_operation"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter to use.
	// If nil, a default limiter will be created with the specified options.
	Limiter ratelimit.RateLimiter

	// Scope determines how rate limiting keys are generated.
	// Default is ScopeGlobal.
	Scope RateLimitScope

	// Rate is the number of tokens added per interval.
	// Only used if Limiter is nil.
	Rate int

	// Burst is the maximum number of tokens (bucket capacity).
	// Only used if Limiter is nil.
	Burst int

	// FailOpen determines behavior when the rate limiter fails.
	// If true, allows requests when the rate limiter is unavailable.
	FailOpen bool
}

// DefaultRateLimitConfig returns a sensible default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Scope: ScopeGlobal,
		Rate:  100,
		Burst: 100,
	}
}

// RateLimit returns middleware that enforces rate limits on calls using
// fortify's token bucket limiter. A limited call fails with
// operation.ErrRateLimited, which the retry policy treats as transient.
func RateLimit(cfg RateLimitConfig) middleware.Middleware {
	limiter := cfg.Limiter
	if limiter == nil {
		rate := cfg.Rate
		if rate <= 0 {
			rate = 100
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = rate
		}
		limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    burst,
			FailOpen: cfg.FailOpen,
		})
	}

	scope := cfg.Scope
	if scope == "" {
		scope = ScopeGlobal
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (any, error) {
			key := "global"
			if scope == ScopePerOperation {
				key = execCtx.Operation
			}

			if !limiter.Allow(ctx, key) {
				logging.Warn().
					Add(logging.CallID(execCtx.CallID)).
					Add(logging.Op(execCtx.Operation)).
					Add(logging.Str("scope", string(scope))).
					Msg("rate limit exceeded")

				return nil, operation.ErrRateLimited
			}

			return next(ctx, execCtx)
		}
	}
}
