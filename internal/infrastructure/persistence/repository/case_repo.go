package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/entity"
	domainwf "github.com/garyjia/caseflow/internal/domain/workflow"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const caseColumns = `id, title, description, priority, status, creator_id, assignee_id,
	due_date, metadata, version, created_at, updated_at`

// CaseRepository implements port.CaseRepository
type CaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	metadata, err := encodeMetadata(c.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO cases (` + caseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		c.ID,
		c.Title,
		c.Description,
		string(c.Priority),
		c.Status.String(),
		c.CreatorID,
		nullString(c.AssigneeID),
		nullTime(c),
		metadata,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to create case: %w", err)
	}

	return nil
}

// GetByID retrieves a case by ID; a missing case yields (nil, nil)
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = ?`

	c, err := scanCase(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case by ID", zap.String("case_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// CompareAndSwap updates the case only while the stored version equals expectedVersion
func (r *CaseRepository) CompareAndSwap(ctx context.Context, c *entity.Case, expectedVersion int64) (bool, error) {
	metadata, err := encodeMetadata(c.Metadata)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE cases SET
			title = ?, description = ?, priority = ?, status = ?,
			assignee_id = ?, due_date = ?, metadata = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		c.Title,
		c.Description,
		string(c.Priority),
		c.Status.String(),
		nullString(c.AssigneeID),
		nullTime(c),
		metadata,
		c.Version,
		c.UpdatedAt,
		c.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update case", zap.String("case_id", c.ID), zap.Error(err))
		return false, fmt.Errorf("failed to update case: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		r.logger.Info("Case version changed before update",
			zap.String("case_id", c.ID),
			zap.Int64("expected_version", expectedVersion))
	}

	return rows == 1, nil
}

// CountActiveByAssignee counts PENDING and IN_PROGRESS cases held by the worker
func (r *CaseRepository) CountActiveByAssignee(ctx context.Context, assigneeID, excludeCaseID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM cases
		WHERE assignee_id = ? AND status IN (?, ?) AND id <> ?
	`

	var n int
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query,
		assigneeID,
		domainwf.StatePending.String(),
		domainwf.StateInProgress.String(),
		excludeCaseID,
	).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to count active cases", zap.String("assignee_id", assigneeID), zap.Error(err))
		return 0, fmt.Errorf("failed to count active cases: %w", err)
	}

	return n, nil
}

// List retrieves cases matching the filter, newest first
func (r *CaseRepository) List(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.AssigneeID != "" {
		where = append(where, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.CreatorID != "" {
		where = append(where, "creator_id = ?")
		args = append(args, filter.CreatorID)
	}

	query := `SELECT ` + caseColumns + ` FROM cases`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list cases", zap.Error(err))
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	cases := make([]*entity.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*entity.Case, error) {
	var (
		c        entity.Case
		priority string
		status   string
		assignee sql.NullString
		dueDate  sql.NullTime
		metadata string
	)

	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&priority,
		&status,
		&c.CreatorID,
		&assignee,
		&dueDate,
		&metadata,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Priority = entity.Priority(priority)
	// Stored as-is; the engine decides what to do with unknown or legacy values
	c.Status = domainwf.State(status)
	if assignee.Valid && assignee.String != "" {
		c.AssigneeID = &assignee.String
	}
	if dueDate.Valid {
		c.DueDate = &dueDate.Time
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for case %s: %w", c.ID, err)
		}
	}

	return &c, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(c *entity.Case) sql.NullTime {
	if c.DueDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *c.DueDate, Valid: true}
}
