// Package scope brackets work with resource acquisition and release.
package scope

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/datakit/domain/operation"
	"github.com/felixgeelhaar/datakit/domain/store"
	"github.com/felixgeelhaar/datakit/infrastructure/logging"
)

// WithResource acquires a handle from the factory, runs action with it, and
// releases the handle exactly once regardless of how action exits. A release
// failure after a successful action is logged and does not mask the action's
// result.
func WithResource(ctx context.Context, factory store.Factory, action func(ctx context.Context, h store.Handle) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(operation.ErrCancelled, err)
	}

	handle, err := factory.Acquire(ctx)
	if err != nil {
		if operation.IsCancelled(err) {
			return nil, errors.Join(operation.ErrCancelled, err)
		}
		return nil, errors.Join(operation.ErrResourceUnavailable, err)
	}

	defer func() {
		if releaseErr := handle.Release(); releaseErr != nil {
			logging.Warn().
				Add(logging.Component("scope")).
				Add(logging.ErrorField(releaseErr)).
				Msg("handle release failed")
		}
	}()

	return action(ctx, handle)
}
