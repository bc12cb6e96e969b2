package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/memory"
)

// Test doubles

type recordingSink struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (s *recordingSink) Emit(ctx context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type failingCaseRepo struct {
	port.CaseRepository
	casErr error
	// afterGet simulates a concurrent writer landing between read and write
	afterGet func(ctx context.Context)
}

func (r *failingCaseRepo) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	c, err := r.CaseRepository.GetByID(ctx, id)
	if r.afterGet != nil {
		r.afterGet(ctx)
	}
	return c, err
}

func (r *failingCaseRepo) CompareAndSwap(ctx context.Context, c *entity.Case, expectedVersion int64) (bool, error) {
	if r.casErr != nil {
		return false, r.casErr
	}
	return r.CaseRepository.CompareAndSwap(ctx, c, expectedVersion)
}

type failingAuditRepo struct {
	port.AuditLogRepository
	err error
}

func (r *failingAuditRepo) Append(ctx context.Context, entry *entity.CaseLog) error {
	return r.err
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *recordingLogger) Error(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

// Fixture

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	store  *memory.Store
	sink   *recordingSink
	engine WorkflowEngine
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	sink := &recordingSink{}

	users := []*entity.User{
		{ID: "admin", Role: entity.RoleAdmin, Active: true},
		{ID: "manager", Role: entity.RoleManager, Active: true},
		{ID: "chair", Role: entity.RoleManager, Active: true},
		{ID: "clerk", Role: entity.RoleClerk, Active: true},
		{ID: "w1", Role: entity.RoleCaseworker, Active: true},
		{ID: "w2", Role: entity.RoleCaseworker, Active: true},
		{ID: "retired", Role: entity.RoleCaseworker, Active: false},
		{ID: "former-manager", Role: entity.RoleManager, Active: false},
	}
	for _, u := range users {
		if err := store.Users().Upsert(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	base := []EngineOption{
		WithEventSink(sink),
		WithClock(func() time.Time { return fixedNow }),
	}

	return &fixture{
		t:      t,
		store:  store,
		sink:   sink,
		engine: NewEngine(store.Cases(), store.Users(), store.AuditLog(), store, append(base, opts...)...),
	}
}

func (f *fixture) seed(id string, status domainwf.State, assignee string) *entity.Case {
	f.t.Helper()
	c := &entity.Case{
		ID:        id,
		Title:     "Case " + id,
		Priority:  entity.PriorityMedium,
		Status:    status,
		CreatorID: "clerk",
		Version:   1,
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
	if assignee != "" {
		c.AssigneeID = entity.StringPtr(assignee)
	}
	if err := f.store.Cases().Create(context.Background(), c); err != nil {
		f.t.Fatalf("seed case: %v", err)
	}
	return c
}

// seedLoad gives a worker n active cases in alternating PENDING/IN_PROGRESS states
func (f *fixture) seedLoad(worker string, n int) {
	f.t.Helper()
	for i := 0; i < n; i++ {
		status := domainwf.StateInProgress
		if i%2 == 0 {
			status = domainwf.StatePending
		}
		f.seed(fmt.Sprintf("%s-load-%d", worker, i), status, worker)
	}
}

func (f *fixture) get(id string) *entity.Case {
	f.t.Helper()
	c, err := f.store.Cases().GetByID(context.Background(), id)
	if err != nil || c == nil {
		f.t.Fatalf("get case %s: %v", id, err)
	}
	return c
}

func (f *fixture) logs(id string) []*entity.CaseLog {
	f.t.Helper()
	logs, err := f.store.AuditLog().ListByCase(context.Background(), id)
	if err != nil {
		f.t.Fatalf("list logs: %v", err)
	}
	return logs
}

func (f *fixture) assertUnchanged(before *entity.Case) {
	f.t.Helper()
	after := f.get(before.ID)
	if after.Status != before.Status || after.Assignee() != before.Assignee() || after.Version != before.Version {
		f.t.Errorf("case changed: before %s/%s/v%d, after %s/%s/v%d",
			before.Status, before.Assignee(), before.Version,
			after.Status, after.Assignee(), after.Version)
	}
	if n := len(f.logs(before.ID)); n != 0 {
		f.t.Errorf("audit entries = %d, want 0", n)
	}
	if n := f.sink.count(); n != 0 {
		f.t.Errorf("events emitted = %d, want 0", n)
	}
}

// Scenarios

func TestEngine_AssignOpenCase(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StateOpen, "")

	result, err := f.engine.Assign(context.Background(), "c1", "manager", "w1")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	if result.Case.Status != domainwf.StatePending {
		t.Errorf("status = %s, want PENDING", result.Case.Status)
	}
	if result.Case.Assignee() != "w1" {
		t.Errorf("assignee = %q, want w1", result.Case.Assignee())
	}
	if result.Case.Version != 2 {
		t.Errorf("version = %d, want 2", result.Case.Version)
	}
	if !result.Case.UpdatedAt.Equal(fixedNow) {
		t.Errorf("updated_at = %v, want %v", result.Case.UpdatedAt, fixedNow)
	}

	stored := f.get("c1")
	if stored.Status != domainwf.StatePending || stored.Assignee() != "w1" {
		t.Errorf("stored = %s/%s", stored.Status, stored.Assignee())
	}

	if result.Audit.Action != "assigned" || result.Audit.ActorID != "manager" {
		t.Errorf("audit = %+v", result.Audit)
	}
	from, to := result.Transition()
	if from != domainwf.StateOpen || to != domainwf.StatePending {
		t.Errorf("transition = %s -> %s", from, to)
	}

	if result.Notification == nil || len(result.Notification.Recipients) != 1 || result.Notification.Recipients[0] != "w1" {
		t.Errorf("notification = %+v, want w1 only", result.Notification)
	}
}

func TestEngine_AssignRequiresOpenRegardlessOfRole(t *testing.T) {
	for _, status := range []domainwf.State{
		domainwf.StatePending,
		domainwf.StateInProgress,
		domainwf.StatePendingCompletion,
		domainwf.StateCompleted,
	} {
		for _, caller := range []string{"admin", "manager"} {
			t.Run(fmt.Sprintf("%s by %s", status, caller), func(t *testing.T) {
				f := newFixture(t)
				before := f.seed("c1", status, "w2")

				_, err := f.engine.Assign(context.Background(), "c1", caller, "w1")
				if !errors.Is(err, domainwf.ErrInvalidStateTransition) {
					t.Fatalf("error = %v, want ErrInvalidStateTransition", err)
				}

				var te *domainwf.TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("expected *TransitionError, got %T", err)
				}
				if te.Current != status || len(te.Expected) != 1 || te.Expected[0] != domainwf.StateOpen {
					t.Errorf("TransitionError = %+v", te)
				}

				f.assertUnchanged(before)
			})
		}
	}
}

func TestEngine_OnlyAssigneeMayAcceptOrReject(t *testing.T) {
	for _, caller := range []string{"admin", "manager", "w2", "clerk"} {
		for _, trigger := range []domainwf.Trigger{domainwf.TriggerAccept, domainwf.TriggerReject} {
			t.Run(fmt.Sprintf("%s by %s", trigger, caller), func(t *testing.T) {
				f := newFixture(t)
				before := f.seed("c1", domainwf.StatePending, "w1")

				_, err := f.engine.Execute(context.Background(), NewCommand(trigger, "c1", caller, ""))
				if !errors.Is(err, domainwf.ErrForbidden) {
					t.Fatalf("error = %v, want ErrForbidden", err)
				}
				f.assertUnchanged(before)
			})
		}
	}
}

func TestEngine_AssignWorkloadCap(t *testing.T) {
	t.Run("worker at five is refused", func(t *testing.T) {
		f := newFixture(t)
		f.seedLoad("w1", 5)
		before := f.seed("c1", domainwf.StateOpen, "")

		_, err := f.engine.Assign(context.Background(), "c1", "manager", "w1")
		if !errors.Is(err, domainwf.ErrWorkloadExceeded) {
			t.Fatalf("error = %v, want ErrWorkloadExceeded", err)
		}

		var gv *domainwf.GuardViolation
		if !errors.As(err, &gv) {
			t.Fatalf("expected *GuardViolation, got %T", err)
		}
		if gv.Count != 5 || gv.Cap != 5 || gv.Subject != "w1" {
			t.Errorf("GuardViolation = %+v", gv)
		}
		f.assertUnchanged(before)
	})

	t.Run("worker at four reaches five", func(t *testing.T) {
		f := newFixture(t)
		f.seedLoad("w1", 4)
		f.seed("c1", domainwf.StateOpen, "")

		if _, err := f.engine.Assign(context.Background(), "c1", "manager", "w1"); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}

		n, _ := f.store.Cases().CountActiveByAssignee(context.Background(), "w1", "")
		if n != 5 {
			t.Errorf("active cases = %d, want 5", n)
		}
	})

	t.Run("completed and awaiting review do not count", func(t *testing.T) {
		f := newFixture(t)
		f.seedLoad("w1", 4)
		f.seed("done", domainwf.StateCompleted, "w1")
		f.seed("review", domainwf.StatePendingCompletion, "w1")
		f.seed("c1", domainwf.StateOpen, "")

		if _, err := f.engine.Assign(context.Background(), "c1", "manager", "w1"); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
	})

	t.Run("configured cap", func(t *testing.T) {
		f := newFixture(t, WithMaxActiveCases(2))
		f.seedLoad("w1", 2)
		f.seed("c1", domainwf.StateOpen, "")

		_, err := f.engine.Assign(context.Background(), "c1", "manager", "w1")
		if !errors.Is(err, domainwf.ErrWorkloadExceeded) {
			t.Fatalf("error = %v, want ErrWorkloadExceeded", err)
		}
	})
}

func TestEngine_AcceptWorkloadRecheck(t *testing.T) {
	t.Run("worker already at five active refuses the offer", func(t *testing.T) {
		f := newFixture(t)
		f.seedLoad("w1", 5)
		before := f.seed("c1", domainwf.StatePending, "w1")

		_, err := f.engine.Accept(context.Background(), "c1", "w1")
		if !errors.Is(err, domainwf.ErrWorkloadExceeded) {
			t.Fatalf("error = %v, want ErrWorkloadExceeded", err)
		}
		f.assertUnchanged(before)
	})

	t.Run("other pending offers count toward the cap", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 5; i++ {
			f.seed(fmt.Sprintf("offer-%d", i), domainwf.StatePending, "w1")
		}
		before := f.seed("c1", domainwf.StatePending, "w1")

		_, err := f.engine.Accept(context.Background(), "c1", "w1")
		var gv *domainwf.GuardViolation
		if !errors.As(err, &gv) || gv.Count != 5 {
			t.Fatalf("error = %v, want workload violation counting 5", err)
		}
		f.assertUnchanged(before)
	})

	t.Run("fifth offer can be accepted", func(t *testing.T) {
		f := newFixture(t)
		f.seedLoad("w1", 4)
		f.seed("c1", domainwf.StatePending, "w1")

		result, err := f.engine.Accept(context.Background(), "c1", "w1")
		if err != nil {
			t.Fatalf("Accept() error = %v", err)
		}
		if result.Case.Status != domainwf.StateInProgress || result.Case.Assignee() != "w1" {
			t.Errorf("case = %s/%s", result.Case.Status, result.Case.Assignee())
		}
		if result.Audit.Action != "accepted" {
			t.Errorf("audit action = %q", result.Audit.Action)
		}
		if result.Notification != nil {
			t.Errorf("accept should not notify, got %+v", result.Notification)
		}
	})
}

func TestEngine_RejectReturnsCaseToOpen(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StatePending, "w1")
	ctx := context.Background()

	result, err := f.engine.Reject(ctx, "c1", "w1")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if result.Case.Status != domainwf.StateOpen || result.Case.HasAssignee() {
		t.Errorf("case = %s/%q, want OPEN with no assignee", result.Case.Status, result.Case.Assignee())
	}

	logs := f.logs("c1")
	if len(logs) != 1 || logs[0].Action != "rejected" {
		t.Fatalf("audit entries = %+v, want one rejected", logs)
	}

	if _, err := f.engine.Assign(ctx, "c1", "manager", "w2"); err != nil {
		t.Fatalf("reassigning after reject: %v", err)
	}
	if got := f.get("c1").Assignee(); got != "w2" {
		t.Errorf("assignee = %q, want w2", got)
	}
}

func TestEngine_RejectCompletionKeepsAssignee(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StateOpen, "")
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() (*Result, error)
		want domainwf.State
	}{
		{"assign", func() (*Result, error) { return f.engine.Assign(ctx, "c1", "admin", "w1") }, domainwf.StatePending},
		{"accept", func() (*Result, error) { return f.engine.Accept(ctx, "c1", "w1") }, domainwf.StateInProgress},
		{"request completion", func() (*Result, error) { return f.engine.RequestCompletion(ctx, "c1", "w1") }, domainwf.StatePendingCompletion},
		{"reject completion", func() (*Result, error) {
			return f.engine.RejectCompletion(ctx, "c1", "manager", WithDetails("missing signatures"))
		}, domainwf.StateInProgress},
	}

	for _, step := range steps {
		result, err := step.run()
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if result.Case.Status != step.want {
			t.Fatalf("%s: status = %s, want %s", step.name, result.Case.Status, step.want)
		}
		if result.Case.Assignee() != "w1" {
			t.Fatalf("%s: assignee = %q, want w1", step.name, result.Case.Assignee())
		}
	}

	logs := f.logs("c1")
	if len(logs) != 4 {
		t.Fatalf("audit entries = %d, want 4", len(logs))
	}
	if logs[3].Action != "completion rejected" || logs[3].Details != "missing signatures" {
		t.Errorf("last entry = %+v", logs[3])
	}
	if got := f.get("c1").Version; got != 5 {
		t.Errorf("version = %d, want 5", got)
	}
}

func TestEngine_ApproveTwice(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StatePendingCompletion, "w1")
	ctx := context.Background()

	if _, err := f.engine.Approve(ctx, "c1", "manager"); err != nil {
		t.Fatalf("first Approve() error = %v", err)
	}

	_, err := f.engine.Approve(ctx, "c1", "manager")
	if !errors.Is(err, domainwf.ErrInvalidStateTransition) {
		t.Fatalf("second Approve() error = %v, want ErrInvalidStateTransition", err)
	}

	if n := len(f.logs("c1")); n != 1 {
		t.Errorf("audit entries = %d, want 1", n)
	}
	if got := f.get("c1").Version; got != 2 {
		t.Errorf("version = %d, want 2", got)
	}
}

func TestEngine_CompletionApprovedNotifiesCreatorAndAssignee(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StateInProgress, "w1")
	ctx := context.Background()

	if _, err := f.engine.RequestCompletion(ctx, "c1", "w1"); err != nil {
		t.Fatalf("RequestCompletion() error = %v", err)
	}
	if got := f.get("c1").Status; got != domainwf.StatePendingCompletion {
		t.Fatalf("status = %s, want PENDING_COMPLETION", got)
	}

	f.sink.events = nil

	result, err := f.engine.Approve(ctx, "c1", "chair")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if result.Case.Status != domainwf.StateCompleted {
		t.Errorf("status = %s, want COMPLETED", result.Case.Status)
	}
	if result.Case.Assignee() != "w1" {
		t.Errorf("completed case should keep its assignee, got %q", result.Case.Assignee())
	}

	if result.Notification == nil {
		t.Fatal("expected a notification request")
	}
	recipients := result.Notification.Recipients
	if len(recipients) != 2 || recipients[0] != "clerk" || recipients[1] != "w1" {
		t.Errorf("recipients = %v, want [clerk w1]", recipients)
	}

	if len(f.sink.events) != 2 {
		t.Fatalf("emitted events = %d, want 2", len(f.sink.events))
	}
	audit, notify := f.sink.events[0], f.sink.events[1]
	if audit.Type != event.TypeCaseApproved || notify.Type != event.TypeNotificationRequested {
		t.Errorf("event types = %s, %s", audit.Type, notify.Type)
	}
	if audit.CorrelationID != notify.CorrelationID {
		t.Error("events from one transition should share a correlation id")
	}
	if got := notify.GetPayloadStrings("recipients"); len(got) != 2 {
		t.Errorf("notification payload recipients = %v", got)
	}
}

func TestEngine_ApproveNotifiesCreatorOnceWhenAlsoAssignee(t *testing.T) {
	f := newFixture(t)
	c := f.seed("c1", domainwf.StatePendingCompletion, "w1")
	c.CreatorID = "w1"
	c.Version = 2
	if ok, err := f.store.Cases().CompareAndSwap(context.Background(), c, 1); !ok || err != nil {
		t.Fatalf("update creator: %v %v", ok, err)
	}

	result, err := f.engine.Approve(context.Background(), "c1", "admin")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if got := result.Notification.Recipients; len(got) != 1 || got[0] != "w1" {
		t.Errorf("recipients = %v, want [w1]", got)
	}
}

func TestEngine_ReviewRequiresReviewer(t *testing.T) {
	for _, caller := range []string{"w1", "clerk"} {
		for _, trigger := range []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerRejectCompletion} {
			t.Run(fmt.Sprintf("%s by %s", trigger, caller), func(t *testing.T) {
				f := newFixture(t)
				before := f.seed("c1", domainwf.StatePendingCompletion, "w1")

				_, err := f.engine.Execute(context.Background(), NewCommand(trigger, "c1", caller, ""))
				if !errors.Is(err, domainwf.ErrForbidden) {
					t.Fatalf("error = %v, want ErrForbidden", err)
				}
				f.assertUnchanged(before)
			})
		}
	}
}

func TestEngine_RequestCompletionOnlyByAssignee(t *testing.T) {
	f := newFixture(t)
	before := f.seed("c1", domainwf.StateInProgress, "w1")

	_, err := f.engine.RequestCompletion(context.Background(), "c1", "manager")
	if !errors.Is(err, domainwf.ErrForbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
	f.assertUnchanged(before)
}

func TestEngine_AssignTargetGuards(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   error
	}{
		{"unknown target", "nobody", domainwf.ErrTargetNotFound},
		{"inactive target", "retired", domainwf.ErrTargetInactive},
		{"manager as target", "manager", domainwf.ErrTargetWrongRole},
		{"clerk as target", "clerk", domainwf.ErrTargetWrongRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.seed("c1", domainwf.StateOpen, "")

			_, err := f.engine.Assign(context.Background(), "c1", "admin", tt.target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, domainwf.ErrGuardViolation) {
				t.Errorf("error %v should match ErrGuardViolation", err)
			}
			f.assertUnchanged(before)
		})
	}
}

func TestEngine_ErrorOrder(t *testing.T) {
	tests := []struct {
		name   string
		seed   domainwf.State
		caseID string
		caller string
		cmd    domainwf.Trigger
		target string
		want   error
	}{
		{"missing case beats unknown caller", domainwf.StateOpen, "missing", "ghost", domainwf.TriggerAssign, "w1", domainwf.ErrNotFound},
		{"unknown caller", domainwf.StateOpen, "c1", "ghost", domainwf.TriggerAssign, "w1", domainwf.ErrUnauthorized},
		{"inactive caller", domainwf.StateOpen, "c1", "former-manager", domainwf.TriggerAssign, "w1", domainwf.ErrUnauthorized},
		{"role beats wrong state", domainwf.StateCompleted, "c1", "clerk", domainwf.TriggerAssign, "w1", domainwf.ErrForbidden},
		{"state beats bad target", domainwf.StatePending, "c1", "manager", domainwf.TriggerAssign, "nobody", domainwf.ErrInvalidStateTransition},
		{"empty case id", domainwf.StateOpen, "", "manager", domainwf.TriggerAssign, "w1", domainwf.ErrNotFound},
		{"empty caller", domainwf.StateOpen, "c1", "", domainwf.TriggerAssign, "w1", domainwf.ErrUnauthorized},
		{"unknown action", domainwf.StateOpen, "c1", "manager", domainwf.Trigger("ARCHIVE"), "", domainwf.ErrInvalidStateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			assignee := ""
			if tt.seed.RequiresAssignee() || tt.seed == domainwf.StateCompleted {
				assignee = "w2"
			}
			f.seed("c1", tt.seed, assignee)

			_, err := f.engine.Execute(context.Background(), NewCommand(tt.cmd, tt.caseID, tt.caller, tt.target))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEngine_Reassign(t *testing.T) {
	t.Run("open case behaves like assign", func(t *testing.T) {
		f := newFixture(t)
		f.seed("c1", domainwf.StateOpen, "")

		result, err := f.engine.Reassign(context.Background(), "c1", "manager", "w2")
		if err != nil {
			t.Fatalf("Reassign() error = %v", err)
		}
		if result.Case.Status != domainwf.StatePending || result.Case.Assignee() != "w2" {
			t.Errorf("case = %s/%s", result.Case.Status, result.Case.Assignee())
		}
		if result.Audit.Action != "assigned" {
			t.Errorf("audit action = %q", result.Audit.Action)
		}
		if result.Events[0].Type != event.TypeCaseAssigned {
			t.Errorf("event type = %s", result.Events[0].Type)
		}
	})

	t.Run("held case is refused", func(t *testing.T) {
		f := newFixture(t)
		before := f.seed("c1", domainwf.StateInProgress, "w1")

		_, err := f.engine.Reassign(context.Background(), "c1", "admin", "w2")
		if !errors.Is(err, domainwf.ErrInvalidStateTransition) {
			t.Fatalf("error = %v, want ErrInvalidStateTransition", err)
		}
		f.assertUnchanged(before)
	})
}

func TestEngine_LegacyStatusIsSurfaced(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.State("CLOSED"), "")

	_, err := f.engine.Assign(context.Background(), "c1", "manager", "w1")
	if !errors.Is(err, domainwf.ErrLegacyState) {
		t.Fatalf("error = %v, want ErrLegacyState", err)
	}
}

func TestEngine_StoreFailureEmitsNothing(t *testing.T) {
	f := newFixture(t)
	before := f.seed("c1", domainwf.StateOpen, "")
	boom := errors.New("database is locked")

	engine := NewEngine(
		&failingCaseRepo{CaseRepository: f.store.Cases(), casErr: boom},
		f.store.Users(), f.store.AuditLog(), f.store,
		WithEventSink(f.sink),
	)

	_, err := engine.Assign(context.Background(), "c1", "manager", "w1")
	if !errors.Is(err, domainwf.ErrStoreUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("error = %v, want ErrStoreUnavailable wrapping cause", err)
	}
	f.assertUnchanged(before)
}

func TestEngine_AuditFailureRollsBackCase(t *testing.T) {
	f := newFixture(t)
	before := f.seed("c1", domainwf.StateOpen, "")
	logger := &recordingLogger{}

	engine := NewEngine(
		f.store.Cases(), f.store.Users(),
		&failingAuditRepo{AuditLogRepository: f.store.AuditLog(), err: errors.New("disk full")},
		f.store,
		WithEventSink(f.sink),
		WithLogger(logger),
	)

	_, err := engine.Assign(context.Background(), "c1", "manager", "w1")
	if !errors.Is(err, domainwf.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
	f.assertUnchanged(before)
	if len(logger.errors) != 1 {
		t.Errorf("logged errors = %v, want one", logger.errors)
	}
}

func TestEngine_ConcurrentModificationDetected(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StateOpen, "")

	// Another writer bumps the version between the engine's read and its write
	repo := &failingCaseRepo{CaseRepository: f.store.Cases()}
	repo.afterGet = func(ctx context.Context) {
		repo.afterGet = nil
		other := f.get("c1")
		other.Title = "edited elsewhere"
		other.Version++
		if ok, err := f.store.Cases().CompareAndSwap(ctx, other, other.Version-1); !ok || err != nil {
			t.Fatalf("concurrent edit failed: %v %v", ok, err)
		}
	}

	engine := NewEngine(repo, f.store.Users(), f.store.AuditLog(), f.store, WithEventSink(f.sink))

	_, err := engine.Assign(context.Background(), "c1", "manager", "w1")
	if !errors.Is(err, domainwf.ErrConcurrentModification) {
		t.Fatalf("error = %v, want ErrConcurrentModification", err)
	}

	stored := f.get("c1")
	if stored.Status != domainwf.StateOpen || stored.Title != "edited elsewhere" {
		t.Errorf("stored = %+v", stored)
	}
	if f.sink.count() != 0 || len(f.logs("c1")) != 0 {
		t.Error("nothing should be emitted or logged on a version miss")
	}
}

func TestEngine_ConcurrentAssignOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StateOpen, "")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	callers := []string{"admin", "manager"}
	workers := []string{"w1", "w2"}

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Assign(context.Background(), "c1", callers[i], workers[i])
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domainwf.ErrInvalidStateTransition), errors.Is(err, domainwf.ErrConcurrentModification):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful assigns = %d, want 1", wins)
	}
	if n := len(f.logs("c1")); n != 1 {
		t.Errorf("audit entries = %d, want 1", n)
	}
}

func TestEngine_OutboxReplacesDirectEmission(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StatePendingCompletion, "w1")

	engine := NewEngine(f.store.Cases(), f.store.Users(), f.store.AuditLog(), f.store,
		WithEventSink(f.sink),
		WithOutbox(f.store.Outbox()),
	)

	if _, err := engine.Approve(context.Background(), "c1", "manager"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	pending, err := f.store.Outbox().FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("outbox rows = %d, want 2", len(pending))
	}
	if pending[0].Event.Type != event.TypeCaseApproved || pending[1].Event.Type != event.TypeNotificationRequested {
		t.Errorf("outbox types = %s, %s", pending[0].Event.Type, pending[1].Event.Type)
	}
	if f.sink.count() != 0 {
		t.Errorf("sink received %d events, want 0 when outbox is set", f.sink.count())
	}
}

func TestEngine_SinkFailureDoesNotUndoTransition(t *testing.T) {
	f := newFixture(t)
	f.seed("c1", domainwf.StatePending, "w1")
	f.sink.err = errors.New("subscriber down")
	logger := &recordingLogger{}

	engine := NewEngine(f.store.Cases(), f.store.Users(), f.store.AuditLog(), f.store,
		WithEventSink(f.sink), WithLogger(logger))

	if _, err := engine.Accept(context.Background(), "c1", "w1"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if got := f.get("c1").Status; got != domainwf.StateInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", got)
	}
	if len(logger.errors) != 1 {
		t.Errorf("logged errors = %v, want one", logger.errors)
	}
}

// Every trigger from every state, by a caller who passes authorization:
// success keeps the status/assignee invariant, failure leaves the case untouched.
func TestEngine_InvariantHoldsAcrossAllTransitions(t *testing.T) {
	triggers := []domainwf.Trigger{
		domainwf.TriggerAssign,
		domainwf.TriggerReassign,
		domainwf.TriggerAccept,
		domainwf.TriggerReject,
		domainwf.TriggerRequestCompletion,
		domainwf.TriggerApprove,
		domainwf.TriggerRejectCompletion,
	}

	for _, state := range domainwf.AllStates() {
		for _, trigger := range triggers {
			t.Run(fmt.Sprintf("%s from %s", trigger, state), func(t *testing.T) {
				f := newFixture(t)
				assignee := ""
				if state != domainwf.StateOpen {
					assignee = "w1"
				}
				before := f.seed("c1", state, assignee)

				caller, target := "manager", ""
				switch trigger {
				case domainwf.TriggerAssign, domainwf.TriggerReassign:
					target = "w2"
				case domainwf.TriggerAccept, domainwf.TriggerReject, domainwf.TriggerRequestCompletion:
					caller = "w1"
				}

				result, err := f.engine.Execute(context.Background(), NewCommand(trigger, "c1", caller, target))
				if err != nil {
					f.assertUnchanged(before)
					return
				}

				stored := f.get("c1")
				if err := stored.CheckInvariants(); err != nil {
					t.Errorf("invariant broken: %v", err)
				}
				if stored.Version != before.Version+1 {
					t.Errorf("version = %d, want %d", stored.Version, before.Version+1)
				}
				if n := len(f.logs("c1")); n != 1 {
					t.Errorf("audit entries = %d, want 1", n)
				}
				if result.Audit.FromStatus != state.String() {
					t.Errorf("audit from = %s, want %s", result.Audit.FromStatus, state)
				}
			})
		}
	}
}
