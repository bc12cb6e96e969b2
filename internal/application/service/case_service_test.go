package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

var serviceNow = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (CaseService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	for _, u := range []*entity.User{
		{ID: "clerk", Role: entity.RoleClerk, Active: true},
		{ID: "manager", Role: entity.RoleManager, Active: true},
		{ID: "w1", Role: entity.RoleCaseworker, Active: true},
		{ID: "old-clerk", Role: entity.RoleClerk, Active: false},
	} {
		require.NoError(t, store.Users().Upsert(ctx, u))
	}

	base := []Option{WithClock(func() time.Time { return serviceNow })}
	svc := NewCaseService(store.Cases(), store.AuditLog(), store.Users(), store, nopLogger{}, append(base, opts...)...)
	return svc, store
}

func TestCreateCase(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateCase(ctx, "clerk", CreateCaseInput{
		Title:    "  Estate of Doe\x00 ",
		Priority: "high",
		Metadata: map[string]string{"docket": "24-117"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Estate of Doe", c.Title)
	assert.Equal(t, entity.PriorityHigh, c.Priority)
	assert.Equal(t, domainwf.StateOpen, c.Status)
	assert.False(t, c.HasAssignee())
	assert.Equal(t, "clerk", c.CreatorID)
	assert.Equal(t, int64(1), c.Version)
	assert.NoError(t, c.CheckInvariants())

	stored, err := store.Cases().GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	logs, err := store.AuditLog().ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "created", logs[0].Action)
	assert.Equal(t, serviceNow, logs[0].Timestamp)
}

func TestCreateCase_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		in     CreateCaseInput
		want   error
	}{
		{"unknown caller", "ghost", CreateCaseInput{Title: "x"}, domainwf.ErrUnauthorized},
		{"inactive caller", "old-clerk", CreateCaseInput{Title: "x"}, domainwf.ErrUnauthorized},
		{"caseworker cannot create", "w1", CreateCaseInput{Title: "x"}, domainwf.ErrForbidden},
		{"missing title", "clerk", CreateCaseInput{Title: " "}, ErrInvalidInput},
		{"long title", "clerk", CreateCaseInput{Title: strings.Repeat("t", 201)}, ErrInvalidInput},
		{"bad priority", "manager", CreateCaseInput{Title: "x", Priority: "critical"}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.CreateCase(context.Background(), tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.want)

			cases, _ := store.Cases().List(context.Background(), port.CaseFilter{})
			assert.Empty(t, cases)
		})
	}
}

func TestCreateCase_Events(t *testing.T) {
	t.Run("outbox", func(t *testing.T) {
		_, store := newTestService(t)
		svc := NewCaseService(store.Cases(), store.AuditLog(), store.Users(), store, nopLogger{}, WithOutbox(store.Outbox()))

		_, err := svc.CreateCase(context.Background(), "clerk", CreateCaseInput{Title: "x"})
		require.NoError(t, err)

		pending, err := store.Outbox().FetchPending(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, event.TypeCaseCreated, pending[0].Event.Type)
	})

	t.Run("direct sink", func(t *testing.T) {
		var got []*event.Event
		sink := port.EventSinkFunc(func(ctx context.Context, evt *event.Event) error {
			got = append(got, evt)
			return nil
		})
		svc, _ := newTestService(t, WithEventSink(sink))

		c, err := svc.CreateCase(context.Background(), "manager", CreateCaseInput{Title: "x"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, c.ID, got[0].CaseID)
	})
}

func TestGetCaseAndHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetCase(ctx, "missing")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	_, err = svc.History(ctx, "missing")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	c, err := svc.CreateCase(ctx, "clerk", CreateCaseInput{Title: "x"})
	require.NoError(t, err)

	got, err := svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)

	history, err := svc.History(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestListCases(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateCase(ctx, "clerk", CreateCaseInput{Title: "x"})
		require.NoError(t, err)
	}

	all, err := svc.ListCases(ctx, port.CaseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	open, err := svc.ListCases(ctx, port.CaseFilter{Status: "open", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	_, err = svc.ListCases(ctx, port.CaseFilter{Status: "RESOLVED"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, domainwf.ErrLegacyState)
}

func TestWorkload(t *testing.T) {
	svc, store := newTestService(t, WithMaxActiveCases(3))
	ctx := context.Background()

	for i, status := range []domainwf.State{domainwf.StatePending, domainwf.StateInProgress, domainwf.StateCompleted} {
		require.NoError(t, store.Cases().Create(ctx, &entity.Case{
			ID:         string(rune('a' + i)),
			Status:     status,
			AssigneeID: entity.StringPtr("w1"),
			Version:    1,
		}))
	}

	summary, err := svc.Workload(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, &WorkloadSummary{WorkerID: "w1", Active: 2, Cap: 3, Remaining: 1}, summary)

	_, err = svc.Workload(ctx, "ghost")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}
