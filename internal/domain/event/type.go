package event

import domainwf "github.com/garyjia/caseflow/internal/domain/workflow"

// Type identifies the type of domain event
type Type string

const (
	TypeCaseCreated           Type = "case.created"
	TypeCaseAssigned          Type = "case.assigned"
	TypeCaseAccepted          Type = "case.accepted"
	TypeCaseRejected          Type = "case.rejected"
	TypeCompletionRequested   Type = "case.completion_requested"
	TypeCaseApproved          Type = "case.approved"
	TypeCompletionRejected    Type = "case.completion_rejected"
	TypeNotificationRequested Type = "notification.requested"
)

var triggerTypes = map[domainwf.Trigger]Type{
	domainwf.TriggerAssign:            TypeCaseAssigned,
	domainwf.TriggerReassign:          TypeCaseAssigned,
	domainwf.TriggerAccept:            TypeCaseAccepted,
	domainwf.TriggerReject:            TypeCaseRejected,
	domainwf.TriggerRequestCompletion: TypeCompletionRequested,
	domainwf.TriggerApprove:           TypeCaseApproved,
	domainwf.TriggerRejectCompletion:  TypeCompletionRejected,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeCaseCreated,
		TypeCaseAssigned,
		TypeCaseAccepted,
		TypeCaseRejected,
		TypeCompletionRequested,
		TypeCaseApproved,
		TypeCompletionRejected,
		TypeNotificationRequested:
		return true
	default:
		return false
	}
}

// IsAudit returns true for events that mirror an audit log entry
func (t Type) IsAudit() bool {
	return t.IsValid() && t != TypeNotificationRequested
}

// ForTrigger maps a workflow trigger to the audit event it produces
func ForTrigger(trigger domainwf.Trigger) (Type, bool) {
	t, ok := triggerTypes[trigger]
	return t, ok
}
