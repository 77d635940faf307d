package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/config"
	"github.com/isdelr/notesync-be/internal/database"
	"github.com/isdelr/notesync-be/internal/models"
	"github.com/isdelr/notesync-be/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

type recordedChange struct {
	userID     string
	ids        []string
	serverTime int64
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []recordedChange
}

func (n *recordingNotifier) NotesChanged(userID string, ids []string, serverTime int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, recordedChange{userID: userID, ids: ids, serverTime: serverTime})
}

type fixture struct {
	db       *database.DB
	clock    *testutil.StubClock
	events   *EventService
	users    *UserService
	notes    *NoteService
	notifier *recordingNotifier
}

func defaultPolicy() config.Policy {
	return config.Default().Policy
}

func newFixture(t *testing.T, policy config.Policy) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	clock := testutil.FixedClock()
	events := NewEventService(db, clock)
	users := NewUserService(db, auth.NewSigner(testJWTSecret, time.Hour), events, clock, policy.PasswordMinLength)
	notifier := &recordingNotifier{}
	notes := NewNoteService(db, users, events, notifier, clock, policy)

	return &fixture{db: db, clock: clock, events: events, users: users, notes: notes, notifier: notifier}
}

func (f *fixture) register(t *testing.T, username string) models.User {
	t.Helper()
	user, _, err := f.users.Register(context.Background(), username, "pw1")
	require.NoError(t, err)
	return user
}

func (f *fixture) addToGroup(t *testing.T, username, group string) {
	t.Helper()
	require.NoError(t, f.users.AddToGroup(context.Background(), username, group))
}

func ptr[T any](v T) *T {
	return &v
}
