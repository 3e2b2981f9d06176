package tx

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/datakit/domain/operation"
	"github.com/felixgeelhaar/datakit/domain/store"
	"github.com/felixgeelhaar/datakit/infrastructure/logging"
)

// ErrScopeClosed is returned when committing or rolling back a scope that
// has already reached a terminal state.
var ErrScopeClosed = errors.New("transaction scope is closed")

// Scope is an open transaction with lifecycle tracking. A scope closes
// exactly once, by Commit or by Rollback; further calls fail with
// ErrScopeClosed.
type Scope struct {
	tx     store.Tx
	interp *statekit.Interpreter[*Context]
	mctx   *Context
}

// Begin opens a transaction on the handle. A begin failure is transient:
// the caller may retry on a fresh handle.
func Begin(ctx context.Context, h store.Handle) (*Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(operation.ErrCancelled, err)
	}

	t, err := h.Begin(ctx)
	if err != nil {
		return nil, operation.Transient(err)
	}

	machine, err := newMachine()
	if err != nil {
		// The machine definition is static; a build failure is a bug.
		if rbErr := t.Rollback(ctx); rbErr != nil {
			logging.Warn().
				Add(logging.Component("tx")).
				Add(logging.ErrorField(rbErr)).
				Msg("rollback after machine build failure")
		}
		return nil, err
	}

	mctx := &Context{}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = mctx
	})
	interp.Start()

	return &Scope{tx: t, interp: interp, mctx: mctx}, nil
}

// State returns the scope's lifecycle state.
func (s *Scope) State() State {
	return State(s.interp.State().Value)
}

// Closed reports whether the scope has reached a terminal state.
func (s *Scope) Closed() bool {
	return s.interp.Done()
}

// Commit commits the transaction and closes the scope. If the underlying
// commit fails the scope rolls back and closes; the caller sees
// ErrCommitFailed and must not assume any writes survived.
func (s *Scope) Commit(ctx context.Context) error {
	if s.interp.Done() {
		return ErrScopeClosed
	}

	if err := s.tx.Commit(ctx); err != nil {
		if rbErr := s.tx.Rollback(ctx); rbErr != nil {
			logging.Warn().
				Add(logging.Component("tx")).
				Add(logging.ErrorField(rbErr)).
				Msg("rollback after failed commit")
		}
		s.interp.Send(statekit.Event{Type: eventRollback, Payload: StateRolledBack})
		return errors.Join(operation.ErrCommitFailed, err)
	}

	s.interp.Send(statekit.Event{Type: eventCommit, Payload: StateCommitted})
	return nil
}

// Rollback discards the transaction and closes the scope.
func (s *Scope) Rollback(ctx context.Context) error {
	if s.interp.Done() {
		return ErrScopeClosed
	}

	err := s.tx.Rollback(ctx)
	s.interp.Send(statekit.Event{Type: eventRollback, Payload: StateRolledBack})
	if err != nil {
		return errors.Join(operation.ErrRollbackFailed, err)
	}
	return nil
}

// WithTransaction runs action inside a transaction on the handle. A
// successful action commits; any action error rolls back and propagates
// unchanged. A rollback failure is logged but never masks the action's
// error. A commit failure surfaces as ErrCommitFailed without any retry.
func WithTransaction(ctx context.Context, h store.Handle, action func(ctx context.Context) (any, error)) (any, error) {
	scope, err := Begin(ctx, h)
	if err != nil {
		return nil, err
	}

	result, err := action(ctx)
	if err != nil {
		if rbErr := scope.Rollback(ctx); rbErr != nil {
			logging.Warn().
				Add(logging.Component("tx")).
				Add(logging.ErrorField(rbErr)).
				Msg("rollback failed")
		}
		return nil, err
	}

	if err := scope.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}
