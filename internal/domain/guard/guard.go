// Package guard holds the pure precondition checks evaluated before a case
// transition. Guards never perform I/O: everything they need, including the
// workload count, is gathered by the engine and passed in through Input.
package guard

import (
	"fmt"

	"github.com/garyjia/caseflow/internal/domain/entity"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// Input is the snapshot a guard decides on
type Input struct {
	Trigger domainwf.Trigger
	Case    *entity.Case
	Caller  *entity.User

	// TargetID is the requested assignee; Target is nil when it does not resolve
	TargetID string
	Target   *entity.User

	// Workload is the active-case count of whoever the cap applies to
	Workload int
	Cap      int
}

// Guard returns nil to allow a transition or a typed error to deny it
type Guard func(in Input) error

// Allow is the guard that always passes
func Allow(Input) error { return nil }

// All composes guards by conjunction; the first denial wins
func All(guards ...Guard) Guard {
	return func(in Input) error {
		for _, g := range guards {
			if err := g(in); err != nil {
				return err
			}
		}
		return nil
	}
}

// CallerActive denies callers that did not resolve or are deactivated
func CallerActive(in Input) error {
	if in.Caller == nil {
		return fmt.Errorf("%w: caller not found", domainwf.ErrUnauthorized)
	}
	if !in.Caller.Active {
		return fmt.Errorf("%w: caller %s is inactive", domainwf.ErrUnauthorized, in.Caller.ID)
	}
	return nil
}

// CallerCan denies callers whose role lacks the permission
func CallerCan(perm entity.Permission) Guard {
	return func(in Input) error {
		if !in.Caller.Role.Can(perm) {
			return &domainwf.ForbiddenError{
				Trigger:  in.Trigger,
				CallerID: in.Caller.ID,
				Reason:   fmt.Sprintf("role %s lacks %s", in.Caller.Role, perm),
			}
		}
		return nil
	}
}

// CallerIsAssignee denies anyone but the current assignee, whatever their role
func CallerIsAssignee(in Input) error {
	if !in.Case.IsAssignedTo(in.Caller.ID) {
		return &domainwf.ForbiddenError{
			Trigger:  in.Trigger,
			CallerID: in.Caller.ID,
			Reason:   "only the assignee may act on this case",
		}
	}
	return nil
}

// TargetExists denies assignment to an unknown user
func TargetExists(in Input) error {
	if in.Target == nil {
		return &domainwf.GuardViolation{Reason: domainwf.ReasonTargetNotFound, Subject: in.TargetID}
	}
	return nil
}

// TargetActive denies assignment to a deactivated user
func TargetActive(in Input) error {
	if !in.Target.Active {
		return &domainwf.GuardViolation{Reason: domainwf.ReasonTargetInactive, Subject: in.Target.ID}
	}
	return nil
}

// TargetIsCaseworker denies assignment to anyone who is not a caseworker
func TargetIsCaseworker(in Input) error {
	if in.Target.Role != entity.RoleCaseworker {
		return &domainwf.GuardViolation{Reason: domainwf.ReasonTargetWrongRole, Subject: in.Target.ID}
	}
	return nil
}

// UnderCap denies when Workload has reached Cap. subject names the user the count belongs to.
func UnderCap(subject func(Input) string) Guard {
	return func(in Input) error {
		if in.Workload >= in.Cap {
			return &domainwf.GuardViolation{
				Reason:  domainwf.ReasonWorkloadExceeded,
				Subject: subject(in),
				Count:   in.Workload,
				Cap:     in.Cap,
			}
		}
		return nil
	}
}

func targetSubject(in Input) string { return in.TargetID }
func callerSubject(in Input) string { return in.Caller.ID }

// Authorize returns the caller checks for a trigger. They run before the
// state check, so a non-assignee always sees Forbidden.
func Authorize(trigger domainwf.Trigger) Guard {
	switch trigger {
	case domainwf.TriggerAssign, domainwf.TriggerReassign:
		return All(CallerActive, CallerCan(entity.PermAssignCase))
	case domainwf.TriggerAccept, domainwf.TriggerReject, domainwf.TriggerRequestCompletion:
		return All(CallerActive, CallerIsAssignee)
	case domainwf.TriggerApprove, domainwf.TriggerRejectCompletion:
		return All(CallerActive, CallerCan(entity.PermReviewCase))
	default:
		return func(in Input) error {
			return fmt.Errorf("%w: unknown trigger %s", domainwf.ErrInvalidStateTransition, trigger)
		}
	}
}

// Preconditions returns the target and workload checks attached to the
// transition itself. They run only once the source state is known to match.
func Preconditions(trigger domainwf.Trigger) Guard {
	switch trigger {
	case domainwf.TriggerAssign, domainwf.TriggerReassign:
		return All(TargetExists, TargetActive, TargetIsCaseworker, UnderCap(targetSubject))
	case domainwf.TriggerAccept:
		return UnderCap(callerSubject)
	default:
		return Allow
	}
}

// NeedsWorkload reports whether Preconditions for the trigger read Input.Workload
func NeedsWorkload(trigger domainwf.Trigger) bool {
	switch trigger {
	case domainwf.TriggerAssign, domainwf.TriggerReassign, domainwf.TriggerAccept:
		return true
	default:
		return false
	}
}
