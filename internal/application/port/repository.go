package port

import (
	"context"

	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

// CaseFilter narrows a case listing. Zero values match everything.
type CaseFilter struct {
	Status     domainwf.State
	AssigneeID string
	CreatorID  string
	Limit      int
	Offset     int
}

// CaseRepository defines persistence operations for Case.
// GetByID returns (nil, nil) when the case does not exist.
type CaseRepository interface {
	Create(ctx context.Context, c *entity.Case) error
	GetByID(ctx context.Context, id string) (*entity.Case, error)

	// CompareAndSwap writes c, whose Version already holds the new value, only if
	// the stored version still equals expectedVersion. It reports false, with
	// no error, on a version miss.
	CompareAndSwap(ctx context.Context, c *entity.Case, expectedVersion int64) (bool, error)

	// CountActiveByAssignee counts cases held by the worker in PENDING or IN_PROGRESS.
	// excludeCaseID, when non-empty, is left out of the count.
	CountActiveByAssignee(ctx context.Context, assigneeID, excludeCaseID string) (int, error)

	List(ctx context.Context, filter CaseFilter) ([]*entity.Case, error)
}

// AuditLogRepository defines append-only persistence for CaseLog
type AuditLogRepository interface {
	Append(ctx context.Context, entry *entity.CaseLog) error
	ListByCase(ctx context.Context, caseID string) ([]*entity.CaseLog, error)
}

// OutboxMessage is a stored event awaiting relay
type OutboxMessage struct {
	Seq      int64
	Event    *event.Event
	Attempts int
}

// OutboxRepository defines the durable event outbox written alongside case changes
type OutboxRepository interface {
	Append(ctx context.Context, evt *event.Event) error
	FetchPending(ctx context.Context, limit int) ([]*OutboxMessage, error)
	MarkPublished(ctx context.Context, seq int64) error
	MarkFailed(ctx context.Context, seq int64, reason string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
