package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/isdelr/notesync-be/internal/database"
	"github.com/isdelr/notesync-be/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockEventService(t *testing.T) (*EventService, sqlmock.Sqlmock, *testutil.StubClock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	clock := testutil.FixedClock()
	return NewEventService(&database.DB{DB: mockDB, Driver: "sqlite"}, clock), mock, clock
}

func TestEventService_CreateEvent(t *testing.T) {
	svc, mock, clock := newMockEventService(t)
	userID := "u1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events (id, type, level, message, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)")).
		WithArgs(sqlmock.AnyArg(), "note.sync", "info", "synced", &userID, clock.Now().UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.CreateEvent(context.Background(), "note.sync", "info", "synced", &userID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventService_PruneEvents(t *testing.T) {
	svc, mock, clock := newMockEventService(t)
	cutoff := clock.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE created_at < ?")).
		WithArgs(cutoff.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := svc.PruneEvents(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventService_GetRecentEvents_QueryError(t *testing.T) {
	svc, mock, _ := newMockEventService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, level, message, user_id, created_at FROM events")).
		WithArgs(5).
		WillReturnError(errors.New("db down"))

	_, err := svc.GetRecentEvents(context.Background(), 5)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

type failingEvents struct{ EventServiceProvider }

func (failingEvents) CreateEvent(context.Context, string, string, string, *string) error {
	return errors.New("boom")
}

func TestRecordEvent_FailureDoesNotPropagate(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.users.events = failingEvents{}

	_, _, err := f.users.Register(context.Background(), "alice", "pw1")
	require.NoError(t, err)
}
