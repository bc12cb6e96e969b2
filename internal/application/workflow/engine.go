package workflow

import (
	"context"

	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// WorkflowEngine applies caller actions to cases
type WorkflowEngine interface {
	// Execute runs a command through load, authorize, state check, guards and persist
	Execute(ctx context.Context, cmd Command) (*Result, error)

	// Assign offers an OPEN case to a caseworker
	Assign(ctx context.Context, caseID, callerID, workerID string, opts ...CommandOption) (*Result, error)

	// Reassign assigns a case whose assignee is null; equivalent to Assign
	Reassign(ctx context.Context, caseID, callerID, workerID string, opts ...CommandOption) (*Result, error)

	// Accept takes on a PENDING offer
	Accept(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error)

	// Reject declines a PENDING offer and returns the case to OPEN
	Reject(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error)

	// RequestCompletion submits IN_PROGRESS work for review
	RequestCompletion(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error)

	// Approve closes a case awaiting review
	Approve(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error)

	// RejectCompletion sends a case awaiting review back to IN_PROGRESS
	RejectCompletion(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error)
}

// Result is the outcome of a successful transition
type Result struct {
	Case *entity.Case
	// Audit is the single log entry written with the case change
	Audit *entity.CaseLog
	// Notification is nil when the transition notifies nobody
	Notification *entity.NotificationRequest
	// Events are the committed events, audit event first
	Events []*event.Event
}

// Transition returns the from/to statuses recorded in the audit entry
func (r *Result) Transition() (from, to domainwf.State) {
	return domainwf.State(r.Audit.FromStatus), domainwf.State(r.Audit.ToStatus)
}
