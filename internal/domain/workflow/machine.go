package workflow

import "context"

// StateMachine tracks a case's current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed.
	// Returns a *TransitionError when the trigger is not configured, or the guard's error.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger

	// ExpectedStates returns the source states from which the trigger is configured
	ExpectedStates(trigger Trigger) []State
}
