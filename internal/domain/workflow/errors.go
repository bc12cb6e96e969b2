package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the case does not exist
	ErrNotFound = errors.New("case not found")

	// ErrUnauthorized is returned when the caller cannot be resolved or is inactive
	ErrUnauthorized = errors.New("caller unauthorized")

	// ErrForbidden is returned when the caller lacks permission for the action
	ErrForbidden = errors.New("caller forbidden")

	// ErrInvalidStateTransition is returned when a state transition is not allowed
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrGuardViolation is returned when a guard condition fails
	ErrGuardViolation = errors.New("guard violation")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrLegacyState is returned for statuses from the retired RESOLVED/CLOSED vocabulary
	ErrLegacyState = errors.New("legacy case status")

	// ErrStoreUnavailable wraps persistence failures; the host decides whether to retry
	ErrStoreUnavailable = errors.New("case store unavailable")

	// ErrConcurrentModification is returned when the case version changed between read and write
	ErrConcurrentModification = errors.New("case modified concurrently")
)

// Guard violation sub-reasons
var (
	ErrTargetNotFound   = errors.New("target user not found")
	ErrTargetInactive   = errors.New("target user inactive")
	ErrTargetWrongRole  = errors.New("target user is not a caseworker")
	ErrWorkloadExceeded = errors.New("workload cap exceeded")
)

// GuardReason names why a guard denied a transition
type GuardReason string

const (
	ReasonTargetNotFound   GuardReason = "TARGET_NOT_FOUND"
	ReasonTargetInactive   GuardReason = "TARGET_INACTIVE"
	ReasonTargetWrongRole  GuardReason = "TARGET_WRONG_ROLE"
	ReasonWorkloadExceeded GuardReason = "WORKLOAD_EXCEEDED"
)

var reasonErrors = map[GuardReason]error{
	ReasonTargetNotFound:   ErrTargetNotFound,
	ReasonTargetInactive:   ErrTargetInactive,
	ReasonTargetWrongRole:  ErrTargetWrongRole,
	ReasonWorkloadExceeded: ErrWorkloadExceeded,
}

// TransitionError reports a trigger fired from a state that does not permit it
type TransitionError struct {
	Trigger  Trigger
	Current  State
	Expected []State
}

func (e *TransitionError) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("%s: trigger %s not permitted from state %s", ErrInvalidStateTransition, e.Trigger, e.Current)
	}
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = s.String()
	}
	return fmt.Sprintf("%s: trigger %s not permitted from state %s (expected %s)",
		ErrInvalidStateTransition, e.Trigger, e.Current, strings.Join(expected, " or "))
}

// Is lets errors.Is match ErrInvalidStateTransition
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// GuardViolation reports a failed precondition on the assignment target or workload
type GuardViolation struct {
	Reason  GuardReason
	Subject string // user the guard evaluated
	Count   int    // current active cases, for WORKLOAD_EXCEEDED
	Cap     int
}

func (e *GuardViolation) Error() string {
	if e.Reason == ReasonWorkloadExceeded {
		return fmt.Sprintf("%s: %s has %d active cases (cap %d)", ErrGuardViolation, e.Subject, e.Count, e.Cap)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrGuardViolation, reasonErrors[e.Reason], e.Subject)
}

// Is lets errors.Is match ErrGuardViolation and the sentinel for the sub-reason
func (e *GuardViolation) Is(target error) bool {
	if target == ErrGuardViolation {
		return true
	}
	return reasonErrors[e.Reason] == target
}

// ForbiddenError reports a caller that is resolved and active but not allowed to act
type ForbiddenError struct {
	Trigger  Trigger
	CallerID string
	Reason   string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s: %s may not %s: %s", ErrForbidden, e.CallerID, e.Trigger, e.Reason)
}

// Is lets errors.Is match ErrForbidden
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
