package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/caseflow/internal/domain/workflow"
)

// Priority ranks how urgently a case needs attention
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// IsValid returns true if the priority is one of the defined constants
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// ParsePriority normalises user input; empty input defaults to MEDIUM
func ParsePriority(raw string) (Priority, error) {
	if strings.TrimSpace(raw) == "" {
		return PriorityMedium, nil
	}
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %s", raw)
	}
	return p, nil
}

// Case is a tracked legal/administrative matter moving through the workflow
type Case struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    Priority          `json:"priority"`
	Status      workflow.State    `json:"status"`
	CreatorID   string            `json:"creator_id"`
	AssigneeID  *string           `json:"assignee_id,omitempty"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Version     int64             `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// HasAssignee returns true if someone currently holds the case
func (c *Case) HasAssignee() bool {
	return c.AssigneeID != nil && *c.AssigneeID != ""
}

// IsAssignedTo returns true if the given user is the current assignee
func (c *Case) IsAssignedTo(userID string) bool {
	return c.HasAssignee() && *c.AssigneeID == userID
}

// Assignee returns the assignee id or an empty string
func (c *Case) Assignee() string {
	if c.AssigneeID == nil {
		return ""
	}
	return *c.AssigneeID
}

// Clone returns a deep copy so a transition can build the next snapshot
// without touching the loaded one
func (c *Case) Clone() *Case {
	out := *c
	if c.AssigneeID != nil {
		a := *c.AssigneeID
		out.AssigneeID = &a
	}
	if c.DueDate != nil {
		d := *c.DueDate
		out.DueDate = &d
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// CheckInvariants verifies the status/assignee relationship.
// COMPLETED cases may keep the assignee who did the work.
func (c *Case) CheckInvariants() error {
	if !c.Status.IsValid() {
		return fmt.Errorf("case %s: %w: %s", c.ID, workflow.ErrInvalidState, c.Status)
	}
	if c.Status.RequiresAssignee() && !c.HasAssignee() {
		return fmt.Errorf("case %s: status %s requires an assignee", c.ID, c.Status)
	}
	if c.Status == workflow.StateOpen && c.HasAssignee() {
		return fmt.Errorf("case %s: open case must not have an assignee", c.ID)
	}
	return nil
}

// StringPtr is a small helper for optional string fields
func StringPtr(s string) *string {
	return &s
}
