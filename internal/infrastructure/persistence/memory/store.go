// Package memory is an in-process implementation of the persistence ports.
// It backs tests and the CLI demo mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
)

type contextKey string

const txKey contextKey = "memory-tx"

type outboxRow struct {
	msg       port.OutboxMessage
	published bool
	lastError string
}

// Store holds cases, users, audit entries and outbox rows behind one lock.
// Transactions are serialized. A failed transaction reverts the writes made
// through its context and nothing else.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	cases   map[string]*entity.Case
	users   map[string]*entity.User
	logs    []*entity.CaseLog
	outbox  []*outboxRow
	nextLog int64
	nextSeq int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		cases: make(map[string]*entity.Case),
		users: make(map[string]*entity.User),
	}
}

// Cases returns the store as a port.CaseRepository
func (s *Store) Cases() port.CaseRepository { return caseRepo{s} }

// Users returns the store as a port.UserDirectory
func (s *Store) Users() port.UserDirectory { return userRepo{s} }

// AuditLog returns the store as a port.AuditLogRepository
func (s *Store) AuditLog() port.AuditLogRepository { return auditRepo{s} }

// Outbox returns the store as a port.OutboxRepository
func (s *Store) Outbox() port.OutboxRepository { return outboxRepo{s} }

// tx is the undo journal of an open transaction
type tx struct {
	undo []func()
}

// WithTransaction implements port.TransactionManager
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{}
	if err := fn(context.WithValue(ctx, txKey, t)); err != nil {
		s.rollback(t)
		return err
	}
	return nil
}

func (s *Store) rollback(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

// journal records how to revert a write when ctx carries a transaction.
// Callers hold s.mu.
func (s *Store) journal(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(txKey).(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

func without[T comparable](items []T, item T) []T {
	for i, it := range items {
		if it == item {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

type caseRepo struct{ s *Store }

func (r caseRepo) Create(ctx context.Context, c *entity.Case) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.cases[c.ID]; exists {
		return ErrDuplicate
	}
	r.s.cases[c.ID] = c.Clone()
	r.s.journal(ctx, func() { delete(r.s.cases, c.ID) })
	return nil
}

func (r caseRepo) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.cases[id]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (r caseRepo) CompareAndSwap(ctx context.Context, c *entity.Case, expectedVersion int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.cases[c.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	r.s.cases[c.ID] = c.Clone()
	r.s.journal(ctx, func() { r.s.cases[c.ID] = stored })
	return true, nil
}

func (r caseRepo) CountActiveByAssignee(ctx context.Context, assigneeID, excludeCaseID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for id, c := range r.s.cases {
		if id == excludeCaseID || !c.IsAssignedTo(assigneeID) {
			continue
		}
		if c.Status == domainwf.StatePending || c.Status == domainwf.StateInProgress {
			n++
		}
	}
	return n, nil
}

func (r caseRepo) List(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.Case, 0, len(r.s.cases))
	for _, c := range r.s.cases {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.AssigneeID != "" && !c.IsAssignedTo(filter.AssigneeID) {
			continue
		}
		if filter.CreatorID != "" && c.CreatorID != filter.CreatorID {
			continue
		}
		out = append(out, c.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*entity.Case{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Resolve(ctx context.Context, userID string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) Upsert(ctx context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, existed := r.s.users[u.ID]
	cp := *u
	r.s.users[u.ID] = &cp
	r.s.journal(ctx, func() {
		if existed {
			r.s.users[u.ID] = prev
		} else {
			delete(r.s.users, u.ID)
		}
	})
	return nil
}

func (r userRepo) List(ctx context.Context) ([]*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(ctx context.Context, entry *entity.CaseLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextLog++
	entry.ID = r.s.nextLog
	stored := new(entity.CaseLog)
	*stored = *entry
	r.s.logs = append(r.s.logs, stored)
	r.s.journal(ctx, func() { r.s.logs = without(r.s.logs, stored) })
	return nil
}

func (r auditRepo) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.CaseLog
	for _, l := range r.s.logs {
		if l.CaseID == caseID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Append(ctx context.Context, evt *event.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextSeq++
	row := &outboxRow{msg: port.OutboxMessage{Seq: r.s.nextSeq, Event: evt}}
	r.s.outbox = append(r.s.outbox, row)
	r.s.journal(ctx, func() { r.s.outbox = without(r.s.outbox, row) })
	return nil
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]*port.OutboxMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*port.OutboxMessage
	for _, row := range r.s.outbox {
		if row.published {
			continue
		}
		msg := row.msg
		out = append(out, &msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, seq int64) error {
	return r.update(ctx, seq, func(row *outboxRow) { row.published = true })
}

func (r outboxRepo) MarkFailed(ctx context.Context, seq int64, reason string) error {
	return r.update(ctx, seq, func(row *outboxRow) {
		row.msg.Attempts++
		row.lastError = reason
	})
}

func (r outboxRepo) update(ctx context.Context, seq int64, fn func(*outboxRow)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, row := range r.s.outbox {
		if row.msg.Seq == seq {
			prev := *row
			fn(row)
			r.s.journal(ctx, func() { *row = prev })
			return nil
		}
	}
	return ErrUnknownSequence
}

// Verify interface compliance
var (
	_ port.TransactionManager = (*Store)(nil)
	_ port.CaseRepository     = caseRepo{}
	_ port.UserDirectory      = userRepo{}
	_ port.AuditLogRepository = auditRepo{}
	_ port.OutboxRepository   = outboxRepo{}
)
