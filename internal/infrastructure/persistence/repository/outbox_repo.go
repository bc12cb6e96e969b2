package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/event"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// OutboxRepository implements port.OutboxRepository on the case_outbox table
type OutboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sql.DB, logger *zap.Logger) port.OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores the event; callers run it inside the transaction that changed the case
func (r *OutboxRepository) Append(ctx context.Context, evt *event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.ID, err)
	}

	query := `
		INSERT INTO case_outbox (event_id, event_type, case_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		evt.ID,
		string(evt.Type),
		evt.CaseID,
		string(payload),
		evt.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append outbox event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to append outbox event: %w", err)
	}

	return nil
}

// FetchPending returns unpublished messages in write order
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*port.OutboxMessage, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT seq, payload, attempts
		FROM case_outbox
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT ?
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to fetch pending outbox events", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	messages := make([]*port.OutboxMessage, 0)
	for rows.Next() {
		var (
			msg     port.OutboxMessage
			payload string
		)
		if err := rows.Scan(&msg.Seq, &payload, &msg.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}

		var evt event.Event
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			return nil, fmt.Errorf("failed to decode outbox event %d: %w", msg.Seq, err)
		}
		msg.Event = &evt
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// MarkPublished records successful delivery
func (r *OutboxRepository) MarkPublished(ctx context.Context, seq int64) error {
	query := `UPDATE case_outbox SET published_at = ? WHERE seq = ?`
	return r.update(ctx, "published", query, time.Now().UTC(), seq)
}

// MarkFailed bumps the attempt counter and keeps the last error
func (r *OutboxRepository) MarkFailed(ctx context.Context, seq int64, reason string) error {
	query := `UPDATE case_outbox SET attempts = attempts + 1, last_error = ? WHERE seq = ?`
	return r.update(ctx, "failed", query, reason, seq)
}

func (r *OutboxRepository) update(ctx context.Context, mark, query string, value interface{}, seq int64) error {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, value, seq)
	if err != nil {
		r.logger.Error("Failed to mark outbox event",
			zap.String("mark", mark),
			zap.Int64("seq", seq),
			zap.Error(err))
		return fmt.Errorf("failed to mark outbox event %s: %w", mark, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox event not found: %d", seq)
	}

	return nil
}
