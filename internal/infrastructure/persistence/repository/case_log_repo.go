package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CaseLogRepository implements port.AuditLogRepository
type CaseLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseLogRepository creates a new audit log repository
func NewCaseLogRepository(db *sql.DB, logger *zap.Logger) port.AuditLogRepository {
	return &CaseLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes an audit entry and sets its ID
func (r *CaseLogRepository) Append(ctx context.Context, entry *entity.CaseLog) error {
	query := `
		INSERT INTO case_logs (
			case_id, actor_id, action, details, from_status, to_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		entry.CaseID,
		entry.ActorID,
		entry.Action,
		entry.Details,
		entry.FromStatus,
		entry.ToStatus,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append case log",
			zap.String("case_id", entry.CaseID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append case log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByCase returns the audit trail of a case in write order
func (r *CaseLogRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseLog, error) {
	query := `
		SELECT id, case_id, actor_id, action, details, from_status, to_status, created_at
		FROM case_logs
		WHERE case_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to list case logs", zap.String("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list case logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*entity.CaseLog, 0)
	for rows.Next() {
		var l entity.CaseLog
		if err := rows.Scan(
			&l.ID,
			&l.CaseID,
			&l.ActorID,
			&l.Action,
			&l.Details,
			&l.FromStatus,
			&l.ToStatus,
			&l.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan case log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
