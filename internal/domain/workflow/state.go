package workflow

import (
	"fmt"
	"strings"
)

// State represents a case status in the assignment lifecycle
type State string

const (
	StateOpen              State = "OPEN"
	StatePending           State = "PENDING"
	StateInProgress        State = "IN_PROGRESS"
	StatePendingCompletion State = "PENDING_COMPLETION"
	StateCompleted         State = "COMPLETED"
)

var validStates = map[State]bool{
	StateOpen:              true,
	StatePending:           true,
	StateInProgress:        true,
	StatePendingCompletion: true,
	StateCompleted:         true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
}

// activeStates count against a worker's concurrent-case cap
var activeStates = map[State]bool{
	StatePending:    true,
	StateInProgress: true,
}

// legacyStates belong to the older OPEN/IN_PROGRESS/PENDING/RESOLVED/CLOSED
// vocabulary. They are recognised only so they can be rejected loudly.
var legacyStates = map[string]bool{
	"RESOLVED": true,
	"CLOSED":   true,
}

// AllStates returns every valid state in lifecycle order
func AllStates() []State {
	return []State{StateOpen, StatePending, StateInProgress, StatePendingCompletion, StateCompleted}
}

// ActiveStates returns the states counted as active workload
func ActiveStates() []State {
	return []State{StatePending, StateInProgress}
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsActive returns true if a case in this state counts against the assignee's workload
func (s State) IsActive() bool {
	return activeStates[s]
}

// RequiresAssignee returns true if a case in this state must have an assignee
func (s State) RequiresAssignee() bool {
	switch s {
	case StatePending, StateInProgress, StatePendingCompletion:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a stored status into a State.
// Statuses from the legacy vocabulary fail with ErrLegacyState.
func ParseState(raw string) (State, error) {
	s := State(strings.ToUpper(strings.TrimSpace(raw)))
	if s.IsValid() {
		return s, nil
	}
	if legacyStates[string(s)] {
		return "", fmt.Errorf("%w: %s", ErrLegacyState, raw)
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidState, raw)
}
