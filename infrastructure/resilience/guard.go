// Package resilience provides call protection using fortify.
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// Guard protects call execution with bulkhead, timeout and circuit breaker
// patterns. Retry policy is handled separately by the retry controller, so
// the guard sits outside it and sees each call once.
type Guard struct {
	bulkhead bulkhead.Bulkhead[any]
	breaker  circuitbreaker.CircuitBreaker[any]
	timeout  time.Duration
}

// GuardConfig configures the guard.
type GuardConfig struct {
	// MaxConcurrent limits concurrent executions.
	MaxConcurrent int

	// BreakerThreshold is the number of consecutive failures before opening.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration

	// DefaultTimeout is the default execution timeout.
	DefaultTimeout time.Duration
}

// DefaultGuardConfig returns a configuration with sensible defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxConcurrent:    10,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		DefaultTimeout:   30 * time.Second,
	}
}

// NewGuard creates a new guard.
func NewGuard(config GuardConfig) *Guard {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent < 0 {
		maxConcurrent = 10
	}
	threshold := config.BreakerThreshold
	if threshold < 0 {
		threshold = 5
	}

	return &Guard{
		bulkhead: bulkhead.New[any](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[any](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    config.BreakerTimeout,
			Timeout:     config.BreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		timeout: config.DefaultTimeout,
	}
}

// NewDefaultGuard creates a guard with default configuration.
func NewDefaultGuard() *Guard {
	return NewGuard(DefaultGuardConfig())
}

// Execute runs fn under the guard.
// Composition order: Bulkhead → Timeout → Circuit Breaker
func (g *Guard) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return g.bulkhead.Execute(ctx, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		return g.breaker.Execute(ctx, fn)
	})
}

// BreakerState returns the circuit breaker state for observability.
func (g *Guard) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}
