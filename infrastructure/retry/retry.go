// Package retry provides bounded retry with exponential backoff and jitter.
// Whether an error is worth retrying is decided by its operation error class.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/felixgeelhaar/datakit/domain/operation"
	"github.com/felixgeelhaar/datakit/infrastructure/logging"
)

// Policy controls retry behaviour.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt. Subsequent delays
	// double, capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential delay before jitter is added.
	MaxDelay time.Duration

	// JitterFraction scales the random jitter added to each delay.
	// A value of 0.5 adds up to half the computed delay again.
	JitterFraction float64

	// Classes lists the error classes that are retried. Errors of any
	// other class fail immediately.
	Classes []operation.Class
}

// DefaultPolicy returns the standard policy: three attempts, 100ms base
// delay doubling to a 1s cap, half-delay jitter, transient errors only.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       time.Second,
		JitterFraction: 0.5,
		Classes:        []operation.Class{operation.ClassTransient},
	}
}

// retryable reports whether the policy covers the error's class.
func (p Policy) retryable(err error) bool {
	class := operation.ClassOf(err)
	for _, c := range p.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Retrier executes functions under a retry policy.
type Retrier struct {
	policy Policy
	rand   func() float64
}

// Option configures the retrier.
type Option func(*Retrier)

// WithRand injects the jitter source. Tests use this for determinism.
func WithRand(fn func() float64) Option {
	return func(r *Retrier) {
		r.rand = fn
	}
}

// New creates a retrier for the given policy.
func New(policy Policy, opts ...Option) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	r := &Retrier{
		policy: policy,
		rand:   rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the retrier's policy.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do invokes fn until it succeeds, fails with a non-retryable error, the
// attempt budget is exhausted, or the context is cancelled. Each attempt
// receives its one-based attempt number. Cancellation during a backoff
// wait or between attempts surfaces as operation.ErrCancelled.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(operation.ErrCancelled, err)
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if operation.IsCancelled(err) {
			return nil, err
		}
		if !r.policy.retryable(err) {
			return nil, err
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		logging.Warn().
			Add(logging.Component("retry")).
			Add(logging.Attempt(attempt)).
			Add(logging.Delay(delay)).
			Add(logging.ErrorField(err)).
			Msg("attempt failed, backing off")

		select {
		case <-ctx.Done():
			return nil, errors.Join(operation.ErrCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", r.policy.MaxAttempts, lastErr)
}

// delay computes the backoff before attempt n+1: BaseDelay doubled per
// completed attempt, capped at MaxDelay, plus proportional jitter.
func (r *Retrier) delay(attempt int) time.Duration {
	delay := r.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.policy.MaxDelay {
			delay = r.policy.MaxDelay
			break
		}
	}
	if delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}

	if r.policy.JitterFraction > 0 {
		jitter := time.Duration(r.rand() * r.policy.JitterFraction * float64(delay))
		delay += jitter
	}
	return delay
}
