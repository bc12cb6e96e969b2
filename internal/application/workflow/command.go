package workflow

import (
	"fmt"
	"strings"

	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// Command is one requested action on one case
type Command struct {
	Trigger  domainwf.Trigger
	CaseID   string
	CallerID string
	// TargetID is the worker to assign; only ASSIGN and REASSIGN use it
	TargetID string
	// Details overrides the generated audit text
	Details string
}

// CommandOption adjusts a Command built by the per-action helpers
type CommandOption func(*Command)

// WithDetails sets free-text details recorded in the audit entry
func WithDetails(details string) CommandOption {
	return func(c *Command) {
		c.Details = details
	}
}

// NewCommand builds a command and applies options
func NewCommand(trigger domainwf.Trigger, caseID, callerID, targetID string, opts ...CommandOption) Command {
	cmd := Command{
		Trigger:  trigger,
		CaseID:   caseID,
		CallerID: callerID,
		TargetID: targetID,
	}
	for _, opt := range opts {
		opt(&cmd)
	}
	return cmd
}

// Validate checks the command is well-formed before anything is loaded
func (c Command) Validate() error {
	if !c.Trigger.IsValid() {
		return fmt.Errorf("%w: unknown action %q", domainwf.ErrInvalidStateTransition, c.Trigger)
	}
	if strings.TrimSpace(c.CaseID) == "" {
		return fmt.Errorf("%w: empty case id", domainwf.ErrNotFound)
	}
	if strings.TrimSpace(c.CallerID) == "" {
		return fmt.Errorf("%w: empty caller id", domainwf.ErrUnauthorized)
	}
	return nil
}
