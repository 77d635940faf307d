package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &DB{Driver: "pgx"}
	lite := &DB{Driver: "sqlite"}

	q := "SELECT id FROM notes WHERE author_id = ? AND updated_at > ? ORDER BY updated_at"

	assert.Equal(t, "SELECT id FROM notes WHERE author_id = $1 AND updated_at > $2 ORDER BY updated_at", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
	assert.Equal(t, "DELETE FROM events", pg.Rebind("DELETE FROM events"))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New("mysql", "whatever")
	require.Error(t, err)
}

func TestMigrate_InMemorySQLite(t *testing.T) {
	db, err := New("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(context.Background(), db))
	// Running again is a no-op.
	require.NoError(t, Migrate(context.Background(), db))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM auth_groups WHERE name IN ('students', 'teachers')").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := &DB{DB: raw, Driver: "sqlite"}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM auth_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = db.WithTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id = ?", "u1")
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = db.WithTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
