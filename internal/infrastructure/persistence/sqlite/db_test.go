package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openDB(t *testing.T) *DB {
	t.Helper()
	raw, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "tx.db")+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	_, err = raw.Exec("CREATE TABLE items (name TEXT NOT NULL)")
	require.NoError(t, err)
	return NewDB(raw, zap.NewNop())
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	return n
}

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		assert.True(t, InTransaction(txCtx))
		_, err := Executor(txCtx, db.DB).ExecContext(txCtx, "INSERT INTO items (name) VALUES ('kept')")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := Executor(txCtx, db.DB).ExecContext(txCtx, "INSERT INTO items (name) VALUES ('dropped')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(outer context.Context) error {
		if err := db.WithTransaction(outer, func(inner context.Context) error {
			_, err := Executor(inner, db.DB).ExecContext(inner, "INSERT INTO items (name) VALUES ('inner')")
			return err
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countItems(t, db), "inner work rolls back with the outer transaction")
}

func TestExecutor_WithoutTransaction(t *testing.T) {
	db := openDB(t)
	assert.False(t, InTransaction(context.Background()))
	assert.Equal(t, Querier(db.DB), Executor(context.Background(), db.DB))
}

func TestWithTransaction_PanicRollsBack(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, "handler bug", func() {
		_ = db.WithTransaction(ctx, func(txCtx context.Context) error {
			if _, err := Executor(txCtx, db.DB).ExecContext(txCtx, "INSERT INTO items (name) VALUES ('lost')"); err != nil {
				return err
			}
			panic("handler bug")
		})
	})
	assert.Equal(t, 0, countItems(t, db))
}
