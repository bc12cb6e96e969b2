package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// UserRepository implements port.UserDirectory on the users table
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserDirectory {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Resolve returns the user, or (nil, nil) when the id is unknown
func (r *UserRepository) Resolve(ctx context.Context, userID string) (*entity.User, error) {
	query := `SELECT id, display_name, email, role, active FROM users WHERE id = ?`

	u, err := scanUser(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return u, nil
}

// Upsert inserts the user or replaces its profile, role and active flag
func (r *UserRepository) Upsert(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (id, display_name, email, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			role = excluded.role,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		u.ID,
		u.DisplayName,
		u.Email,
		string(u.Role),
		u.Active,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("user_id", u.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// List returns every user ordered by id
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT id, display_name, email, role, active FROM users ORDER BY id ASC`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		u    entity.User
		role string
	)
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &role, &u.Active); err != nil {
		return nil, err
	}
	// Older rows may carry alias names such as CHAIR
	if parsed, err := entity.ParseRole(role); err == nil {
		u.Role = parsed
	} else {
		u.Role = entity.Role(role)
	}
	return &u, nil
}
