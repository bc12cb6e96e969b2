package workflow

// Trigger represents a caller action that can cause a state transition
type Trigger string

const (
	TriggerAssign            Trigger = "ASSIGN"
	TriggerReassign          Trigger = "REASSIGN"
	TriggerAccept            Trigger = "ACCEPT"
	TriggerReject            Trigger = "REJECT"
	TriggerRequestCompletion Trigger = "REQUEST_COMPLETION"
	TriggerApprove           Trigger = "APPROVE"
	TriggerRejectCompletion  Trigger = "REJECT_COMPLETION"
)

var triggerLabels = map[Trigger]string{
	TriggerAssign:            "assigned",
	TriggerReassign:          "assigned",
	TriggerAccept:            "accepted",
	TriggerReject:            "rejected",
	TriggerRequestCompletion: "completion requested",
	TriggerApprove:           "approved",
	TriggerRejectCompletion:  "completion rejected",
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is a known action
func (t Trigger) IsValid() bool {
	_, ok := triggerLabels[t]
	return ok
}

// Label returns the audit action label recorded for the trigger
func (t Trigger) Label() string {
	return triggerLabels[t]
}

// TakesTarget returns true if the trigger names a worker to assign
func (t Trigger) TakesTarget() bool {
	return t == TriggerAssign || t == TriggerReassign
}
