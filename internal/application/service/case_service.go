package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/application/workload"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
	"github.com/garyjia/caseflow/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ErrInvalidInput is returned when case fields fail validation
var ErrInvalidInput = errors.New("invalid input")

// DefaultListLimit caps listings that do not set a limit
const DefaultListLimit = 50

// CreateCaseInput holds the caller-supplied fields of a new case
type CreateCaseInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// WorkloadSummary reports how many more cases a worker can take
type WorkloadSummary struct {
	WorkerID  string `json:"worker_id"`
	Active    int    `json:"active"`
	Cap       int    `json:"cap"`
	Remaining int    `json:"remaining"`
}

// CaseService covers the case operations that are not workflow transitions
type CaseService interface {
	CreateCase(ctx context.Context, callerID string, in CreateCaseInput) (*entity.Case, error)
	GetCase(ctx context.Context, caseID string) (*entity.Case, error)
	ListCases(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error)
	History(ctx context.Context, caseID string) ([]*entity.CaseLog, error)
	Workload(ctx context.Context, workerID string) (*WorkloadSummary, error)
}

type caseServiceImpl struct {
	caseRepo  port.CaseRepository
	auditRepo port.AuditLogRepository
	identity  port.IdentityProvider
	txManager port.TransactionManager
	counter   *workload.Counter
	logger    Logger

	outbox    port.OutboxRepository
	sink      port.EventSink
	maxActive int
	now       func() time.Time
}

// Option configures the case service
type Option func(*caseServiceImpl)

// WithOutbox records case.created events in the outbox
func WithOutbox(outbox port.OutboxRepository) Option {
	return func(s *caseServiceImpl) { s.outbox = outbox }
}

// WithEventSink emits case.created directly when no outbox is set
func WithEventSink(sink port.EventSink) Option {
	return func(s *caseServiceImpl) { s.sink = sink }
}

// WithMaxActiveCases sets the cap reported by Workload
func WithMaxActiveCases(n int) Option {
	return func(s *caseServiceImpl) {
		if n > 0 {
			s.maxActive = n
		}
	}
}

// WithClock sets the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *caseServiceImpl) { s.now = now }
}

// NewCaseService creates a new CaseService
func NewCaseService(
	caseRepo port.CaseRepository,
	auditRepo port.AuditLogRepository,
	identity port.IdentityProvider,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) CaseService {
	s := &caseServiceImpl{
		caseRepo:  caseRepo,
		auditRepo: auditRepo,
		identity:  identity,
		txManager: txManager,
		counter:   workload.NewCounter(caseRepo),
		logger:    logger,
		maxActive: 5,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCase opens a new unassigned case on behalf of a caller with case:create
func (s *caseServiceImpl) CreateCase(ctx context.Context, callerID string, in CreateCaseInput) (*entity.Case, error) {
	caller, err := s.identity.Resolve(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve user %s: %w", domainwf.ErrStoreUnavailable, callerID, err)
	}
	if caller == nil || !caller.Active {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrUnauthorized, callerID)
	}
	if !caller.Can(entity.PermCreateCase) {
		return nil, fmt.Errorf("%w: role %s may not create cases", domainwf.ErrForbidden, caller.Role)
	}

	title := utils.SanitizeString(strings.TrimSpace(in.Title))
	if err := utils.ValidateTitle(title); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	priority, err := entity.ParsePriority(in.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now()
	c := &entity.Case{
		ID:          uuid.NewString(),
		Title:       title,
		Description: utils.SanitizeString(in.Description),
		Priority:    priority,
		Status:      domainwf.StateOpen,
		CreatorID:   caller.ID,
		DueDate:     in.DueDate,
		Metadata:    in.Metadata,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	audit := &entity.CaseLog{
		CaseID:    c.ID,
		ActorID:   caller.ID,
		Action:    "created",
		Details:   fmt.Sprintf("created with priority %s", priority),
		ToStatus:  c.Status.String(),
		Timestamp: now,
	}
	evt := event.NewEvent(event.TypeCaseCreated, c.ID, caller.ID, map[string]interface{}{
		"title":     c.Title,
		"priority":  string(c.Priority),
		"to_status": c.Status.String(),
	})
	evt.Timestamp = now

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.caseRepo.Create(txCtx, c); err != nil {
			return fmt.Errorf("%w: create case: %w", domainwf.ErrStoreUnavailable, err)
		}
		if err := s.auditRepo.Append(txCtx, audit); err != nil {
			return fmt.Errorf("%w: append audit entry: %w", domainwf.ErrStoreUnavailable, err)
		}
		if s.outbox != nil {
			if err := s.outbox.Append(txCtx, evt); err != nil {
				return fmt.Errorf("%w: append outbox event: %w", domainwf.ErrStoreUnavailable, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create case", "error", err, "caller", caller.ID)
		return nil, err
	}

	s.logger.Info("Case created", "case_id", c.ID, "creator", caller.ID, "priority", c.Priority)

	if s.outbox == nil && s.sink != nil {
		if err := s.sink.Emit(ctx, evt); err != nil {
			s.logger.Error("Event emission failed", "event_type", evt.Type, "case_id", c.ID, "error", err)
		}
	}

	return c, nil
}

// GetCase returns a case or ErrNotFound
func (s *caseServiceImpl) GetCase(ctx context.Context, caseID string) (*entity.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: load case %s: %w", domainwf.ErrStoreUnavailable, caseID, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrNotFound, caseID)
	}
	return c, nil
}

// ListCases lists cases newest first
func (s *caseServiceImpl) ListCases(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error) {
	if filter.Status != "" {
		state, err := domainwf.ParseState(string(filter.Status))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		filter.Status = state
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	cases, err := s.caseRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list cases: %w", domainwf.ErrStoreUnavailable, err)
	}
	return cases, nil
}

// History returns the audit trail of a case, oldest first
func (s *caseServiceImpl) History(ctx context.Context, caseID string) ([]*entity.CaseLog, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	logs, err := s.auditRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: list history: %w", domainwf.ErrStoreUnavailable, err)
	}
	return logs, nil
}

// Workload reports a worker's active count against the cap
func (s *caseServiceImpl) Workload(ctx context.Context, workerID string) (*WorkloadSummary, error) {
	u, err := s.identity.Resolve(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve user %s: %w", domainwf.ErrStoreUnavailable, workerID, err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", domainwf.ErrNotFound, workerID)
	}

	n, err := s.counter.ActiveCases(ctx, workerID)
	if err != nil {
		return nil, err
	}

	remaining := s.maxActive - n
	if remaining < 0 {
		remaining = 0
	}
	return &WorkloadSummary{
		WorkerID:  workerID,
		Active:    n,
		Cap:       s.maxActive,
		Remaining: remaining,
	}, nil
}
