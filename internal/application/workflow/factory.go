package workflow

import (
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// BuildCaseStateMachine creates a state machine configured for the case workflow.
// preconditions is attached to the transitions that check targets or workload.
func BuildCaseStateMachine(initialState domainwf.State, preconditions domainwf.GuardFunc) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// OPEN: unassigned, waiting for a manager
	builder.Configure(domainwf.StateOpen).
		PermitIf(domainwf.TriggerAssign, domainwf.StatePending, preconditions).
		PermitIf(domainwf.TriggerReassign, domainwf.StatePending, preconditions)

	// PENDING: offered to the assignee
	builder.Configure(domainwf.StatePending).
		PermitIf(domainwf.TriggerAccept, domainwf.StateInProgress, preconditions).
		Permit(domainwf.TriggerReject, domainwf.StateOpen)

	builder.Configure(domainwf.StateInProgress).
		Permit(domainwf.TriggerRequestCompletion, domainwf.StatePendingCompletion)

	builder.Configure(domainwf.StatePendingCompletion).
		Permit(domainwf.TriggerApprove, domainwf.StateCompleted).
		Permit(domainwf.TriggerRejectCompletion, domainwf.StateInProgress)

	// COMPLETED is terminal

	return builder.Build(initialState)
}
