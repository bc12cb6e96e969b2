package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/application/workload"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
	"github.com/garyjia/caseflow/internal/domain/guard"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// DefaultMaxActiveCases is the per-worker cap on PENDING plus IN_PROGRESS cases
const DefaultMaxActiveCases = 5

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of WorkflowEngine.
// It holds no per-case state; per-case serialization comes from the
// version check in CaseRepository.CompareAndSwap.
type engineImpl struct {
	caseRepo  port.CaseRepository
	identity  port.IdentityProvider
	auditRepo port.AuditLogRepository
	txManager port.TransactionManager
	counter   *workload.Counter

	outbox    port.OutboxRepository
	sink      port.EventSink
	maxActive int
	now       func() time.Time
	logger    Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithOutbox writes every event to the outbox inside the transition transaction.
// When set, events reach subscribers through the outbox relay only.
func WithOutbox(outbox port.OutboxRepository) EngineOption {
	return func(e *engineImpl) {
		e.outbox = outbox
	}
}

// WithEventSink emits events directly after commit when no outbox is configured
func WithEventSink(sink port.EventSink) EngineOption {
	return func(e *engineImpl) {
		e.sink = sink
	}
}

// WithMaxActiveCases overrides the workload cap
func WithMaxActiveCases(n int) EngineOption {
	return func(e *engineImpl) {
		if n > 0 {
			e.maxActive = n
		}
	}
}

// WithClock sets the time source used for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	caseRepo port.CaseRepository,
	identity port.IdentityProvider,
	auditRepo port.AuditLogRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		caseRepo:  caseRepo,
		identity:  identity,
		auditRepo: auditRepo,
		txManager: txManager,
		counter:   workload.NewCounter(caseRepo),
		maxActive: DefaultMaxActiveCases,
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Assign(ctx context.Context, caseID, callerID, workerID string, opts ...CommandOption) (*Result, error) {
	return e.Execute(ctx, NewCommand(domainwf.TriggerAssign, caseID, callerID, workerID, opts...))
}

func (e *engineImpl) Reassign(ctx context.Context, caseID, callerID, workerID string, opts ...CommandOption) (*Result, error) {
	return e.Execute(ctx, NewCommand(domainwf.TriggerReassign, caseID, callerID, workerID, opts...))
}

func (e *engineImpl) Accept(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error) {
	return e.Execute(ctx, NewCommand(domainwf.TriggerAccept, caseID, callerID, "", opts...))
}

func (e *engineImpl) Reject(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error) {
	return e.Execute(ctx, NewCommand(domainwf.TriggerReject, caseID, callerID, "", opts...))
}

func (e *engineImpl) RequestCompletion(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error) {
	return e.Execute(ctx, NewCommand(domainwf.TriggerRequestCompletion, caseID, callerID, "", opts...))
}

func (e *engineImpl) Approve(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error) {
	return e.Execute(ctx, NewCommand(domainwf.TriggerApprove, caseID, callerID, "", opts...))
}

func (e *engineImpl) RejectCompletion(ctx context.Context, caseID, callerID string, opts ...CommandOption) (*Result, error) {
	return e.Execute(ctx, NewCommand(domainwf.TriggerRejectCompletion, caseID, callerID, "", opts...))
}

// Execute runs a command. Checks happen in a fixed order: case exists,
// caller resolves, caller may act, source state matches, preconditions pass.
func (e *engineImpl) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := e.loadCase(ctx, cmd.CaseID)
	if err != nil {
		return nil, err
	}

	caller, err := e.resolve(ctx, cmd.CallerID)
	if err != nil {
		return nil, err
	}

	in := guard.Input{
		Trigger:  cmd.Trigger,
		Case:     current,
		Caller:   caller,
		TargetID: cmd.TargetID,
		Cap:      e.maxActive,
	}

	if err := guard.Authorize(cmd.Trigger)(in); err != nil {
		return nil, err
	}

	// The guard closure reads in by reference so target and workload can be
	// filled after the state check.
	machine := BuildCaseStateMachine(current.Status, func(ctx context.Context) error {
		return guard.Preconditions(cmd.Trigger)(in)
	})

	if !machine.CanFire(cmd.Trigger) {
		return nil, &domainwf.TransitionError{
			Trigger:  cmd.Trigger,
			Current:  current.Status,
			Expected: machine.ExpectedStates(cmd.Trigger),
		}
	}

	if err := e.gatherPreconditionInput(ctx, &in); err != nil {
		return nil, err
	}

	previousState := machine.State()
	if err := machine.Fire(ctx, cmd.Trigger); err != nil {
		return nil, err
	}

	next := e.applyTransition(current, machine.State(), cmd)
	if err := next.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("transition %s produced an invalid case: %w", cmd.Trigger, err)
	}

	result := e.buildResult(next, previousState, cmd)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.persist(txCtx, result, current.Version)
	})
	if err != nil {
		if !errors.Is(err, domainwf.ErrConcurrentModification) && !errors.Is(err, domainwf.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domainwf.ErrStoreUnavailable, err)
		}
		if e.logger != nil {
			e.logger.Error("Transition not persisted",
				"case_id", cmd.CaseID,
				"trigger", cmd.Trigger,
				"error", err,
			)
		}
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info("Case transitioned",
			"case_id", next.ID,
			"trigger", cmd.Trigger,
			"from", previousState,
			"to", next.Status,
			"actor", cmd.CallerID,
			"version", next.Version,
		)
	}

	e.emit(ctx, result.Events)

	return result, nil
}

func (e *engineImpl) loadCase(ctx context.Context, caseID string) (*entity.Case, error) {
	c, err := e.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: load case %s: %w", domainwf.ErrStoreUnavailable, caseID, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrNotFound, caseID)
	}

	state, err := domainwf.ParseState(string(c.Status))
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", caseID, err)
	}
	c.Status = state

	return c, nil
}

func (e *engineImpl) resolve(ctx context.Context, userID string) (*entity.User, error) {
	u, err := e.identity.Resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve user %s: %w", domainwf.ErrStoreUnavailable, userID, err)
	}
	return u, nil
}

// gatherPreconditionInput performs the I/O the pure guards need. Workload is
// PENDING plus IN_PROGRESS cases; on accept it leaves out the offer being accepted.
func (e *engineImpl) gatherPreconditionInput(ctx context.Context, in *guard.Input) error {
	if in.Trigger.TakesTarget() && in.TargetID != "" {
		target, err := e.resolve(ctx, in.TargetID)
		if err != nil {
			return err
		}
		in.Target = target
	}

	if !guard.NeedsWorkload(in.Trigger) {
		return nil
	}

	var (
		n   int
		err error
	)
	switch {
	case in.Trigger.TakesTarget():
		if in.Target == nil {
			return nil
		}
		n, err = e.counter.ActiveCases(ctx, in.TargetID)
	case in.Trigger == domainwf.TriggerAccept:
		// The offer being accepted already counts as PENDING for the caller
		n, err = e.counter.ActiveCasesExcluding(ctx, in.Caller.ID, in.Case.ID)
	}
	if err != nil {
		return err
	}
	in.Workload = n

	return nil
}

// applyTransition builds the next snapshot without touching the loaded one
func (e *engineImpl) applyTransition(current *entity.Case, to domainwf.State, cmd Command) *entity.Case {
	next := current.Clone()
	next.Status = to

	switch cmd.Trigger {
	case domainwf.TriggerAssign, domainwf.TriggerReassign:
		next.AssigneeID = entity.StringPtr(cmd.TargetID)
	case domainwf.TriggerReject:
		next.AssigneeID = nil
	}

	next.Version = current.Version + 1
	next.UpdatedAt = e.now()

	return next
}

func (e *engineImpl) buildResult(next *entity.Case, from domainwf.State, cmd Command) *Result {
	now := next.UpdatedAt

	details := cmd.Details
	if details == "" {
		details = defaultDetails(cmd)
	}

	audit := &entity.CaseLog{
		CaseID:     next.ID,
		ActorID:    cmd.CallerID,
		Action:     cmd.Trigger.Label(),
		Details:    details,
		FromStatus: from.String(),
		ToStatus:   next.Status.String(),
		Timestamp:  now,
	}

	correlationID := uuid.NewString()
	auditType, _ := event.ForTrigger(cmd.Trigger)
	auditEvent := event.NewEventWithCorrelation(auditType, next.ID, cmd.CallerID, map[string]interface{}{
		"action":      audit.Action,
		"details":     audit.Details,
		"from_status": audit.FromStatus,
		"to_status":   audit.ToStatus,
		"assignee_id": next.Assignee(),
		"version":     next.Version,
	}, correlationID)
	auditEvent.Timestamp = now

	result := &Result{
		Case:   next,
		Audit:  audit,
		Events: []*event.Event{auditEvent},
	}

	if n := buildNotification(next, cmd); n != nil {
		notifyEvent := event.NewEventWithCorrelation(event.TypeNotificationRequested, next.ID, cmd.CallerID, map[string]interface{}{
			"recipients": n.Recipients,
			"subject":    n.Subject,
			"message":    n.Message,
		}, correlationID)
		notifyEvent.Timestamp = now
		result.Notification = n
		result.Events = append(result.Events, notifyEvent)
	}

	return result
}

func defaultDetails(cmd Command) string {
	switch cmd.Trigger {
	case domainwf.TriggerAssign, domainwf.TriggerReassign:
		return fmt.Sprintf("assigned to %s", cmd.TargetID)
	case domainwf.TriggerReject:
		return fmt.Sprintf("offer declined by %s", cmd.CallerID)
	default:
		return fmt.Sprintf("%s by %s", cmd.Trigger.Label(), cmd.CallerID)
	}
}

// buildNotification returns who hears about the transition, if anyone
func buildNotification(next *entity.Case, cmd Command) *entity.NotificationRequest {
	switch cmd.Trigger {
	case domainwf.TriggerAssign, domainwf.TriggerReassign:
		return &entity.NotificationRequest{
			CaseID:     next.ID,
			Recipients: []string{cmd.TargetID},
			Subject:    fmt.Sprintf("Case assigned: %s", next.Title),
			Message:    fmt.Sprintf("Case %s has been offered to you by %s.", next.ID, cmd.CallerID),
		}
	case domainwf.TriggerApprove:
		return &entity.NotificationRequest{
			CaseID:     next.ID,
			Recipients: uniqueNonEmpty(next.CreatorID, next.Assignee()),
			Subject:    fmt.Sprintf("Case completed: %s", next.Title),
			Message:    fmt.Sprintf("Case %s was approved by %s.", next.ID, cmd.CallerID),
		}
	default:
		return nil
	}
}

func uniqueNonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// persist writes the case, audit entry and outbox rows in one transaction
func (e *engineImpl) persist(ctx context.Context, result *Result, expectedVersion int64) error {
	swapped, err := e.caseRepo.CompareAndSwap(ctx, result.Case, expectedVersion)
	if err != nil {
		return fmt.Errorf("%w: update case %s: %w", domainwf.ErrStoreUnavailable, result.Case.ID, err)
	}
	if !swapped {
		return fmt.Errorf("%w: case %s changed since version %d", domainwf.ErrConcurrentModification, result.Case.ID, expectedVersion)
	}

	if err := e.auditRepo.Append(ctx, result.Audit); err != nil {
		return fmt.Errorf("%w: append audit entry: %w", domainwf.ErrStoreUnavailable, err)
	}

	if e.outbox == nil {
		return nil
	}
	for _, evt := range result.Events {
		if err := e.outbox.Append(ctx, evt); err != nil {
			return fmt.Errorf("%w: append outbox event %s: %w", domainwf.ErrStoreUnavailable, evt.Type, err)
		}
	}

	return nil
}

// emit hands committed events to the sink. Delivery failures are logged only:
// the case change already stands.
func (e *engineImpl) emit(ctx context.Context, events []*event.Event) {
	if e.outbox != nil || e.sink == nil {
		return
	}
	for _, evt := range events {
		if err := e.sink.Emit(ctx, evt); err != nil && e.logger != nil {
			e.logger.Error("Event emission failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"case_id", evt.CaseID,
				"error", err,
			)
		}
	}
}
