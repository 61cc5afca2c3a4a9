package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrStateNotInGraph indicates a referenced state does not belong to the graph.
	ErrStateNotInGraph = errors.New("state not in graph")

	// ErrDuplicateStateName indicates a state name collision within one graph.
	ErrDuplicateStateName = errors.New("duplicate state name")

	// ErrDuplicateTransition indicates a (from, to) pair already exists.
	ErrDuplicateTransition = errors.New("transition already exists between these states")

	// ErrSelfTransition indicates a transition from a state to itself.
	ErrSelfTransition = errors.New("cannot create transition from state to itself")

	// ErrGraphInvalid indicates the graph violates structural invariants.
	ErrGraphInvalid = errors.New("workflow graph is invalid")
)

// StateInUseError is returned when deleting a state still referenced by
// transitions. Callers must remove the transitions first.
type StateInUseError struct {
	StateID     string
	Transitions int
}

func (e *StateInUseError) Error() string {
	return fmt.Sprintf("state %s is referenced by %d transition(s), remove transitions first", e.StateID, e.Transitions)
}

// IsStateInUse checks if an error indicates a state is still referenced by transitions.
func IsStateInUse(err error) bool {
	var target *StateInUseError

	return errors.As(err, &target)
}
