package resilience

import "time"

// Option configures the guard.
type Option func(*GuardConfig)

// WithMaxConcurrent sets the maximum concurrent executions.
func WithMaxConcurrent(n int) Option {
	return func(c *GuardConfig) {
		c.MaxConcurrent = n
	}
}

// WithBreakerThreshold sets the failure threshold for the circuit breaker.
func WithBreakerThreshold(n int) Option {
	return func(c *GuardConfig) {
		c.BreakerThreshold = n
	}
}

// WithBreakerTimeout sets the circuit breaker open duration.
func WithBreakerTimeout(d time.Duration) Option {
	return func(c *GuardConfig) {
		c.BreakerTimeout = d
	}
}

// WithTimeout sets the default execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *GuardConfig) {
		c.DefaultTimeout = d
	}
}

// NewGuardWithOptions creates a guard with the given options.
func NewGuardWithOptions(opts ...Option) *Guard {
	config := DefaultGuardConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return NewGuard(config)
}
