// Package tx provides transaction bracketing over store handles. A small
// statechart tracks each transaction's lifecycle so that commit and rollback
// on a closed scope are rejected rather than silently repeated.
package tx

import (
	"github.com/felixgeelhaar/statekit"
)

// State is a transaction lifecycle state.
type State string

const (
	// StateOpen means the transaction accepts work.
	StateOpen State = "open"

	// StateCommitted means the transaction committed.
	StateCommitted State = "committed"

	// StateRolledBack means the transaction rolled back.
	StateRolledBack State = "rolled_back"
)

// State IDs as StateID type for statekit.
const (
	stateOpen       statekit.StateID = statekit.StateID(StateOpen)
	stateCommitted  statekit.StateID = statekit.StateID(StateCommitted)
	stateRolledBack statekit.StateID = statekit.StateID(StateRolledBack)
)

// Event types accepted by the transaction machine.
const (
	eventCommit   statekit.EventType = "COMMIT"
	eventRollback statekit.EventType = "ROLLBACK"
)

// Context carries the transaction outcome through the state machine.
type Context struct {
	Outcome State
}

// recordOutcome notes the terminal state on the machine context.
// Actions receive a pointer to the context; ours is *Context, so **Context.
func recordOutcome(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if outcome, ok := event.Payload.(State); ok {
		(*ctx).Outcome = outcome
	}
}

// newMachine creates the transaction lifecycle statechart.
func newMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("transaction").
		WithInitial(stateOpen).
		WithContext(&Context{}).
		WithAction("recordOutcome", recordOutcome).
		State(stateOpen).
			On(eventCommit).Target(stateCommitted).Do("recordOutcome").
			On(eventRollback).Target(stateRolledBack).Do("recordOutcome").
			Done().
		State(stateCommitted).
			Final().
			Done().
		State(stateRolledBack).
			Final().
			Done().
		Build()
}
