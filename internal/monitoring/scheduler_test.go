package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isdelr/notesync-be/internal/models"
	"github.com/isdelr/notesync-be/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvents struct {
	pruneBefore time.Time
	pruneErr    error
}

func (s *stubEvents) CreateEvent(context.Context, string, string, string, *string) error { return nil }

func (s *stubEvents) GetRecentEvents(context.Context, int) ([]models.Event, error) { return nil, nil }

func (s *stubEvents) PruneEvents(_ context.Context, before time.Time) (int64, error) {
	s.pruneBefore = before
	return 2, s.pruneErr
}

type stubBackups struct {
	calls int
	err   error
}

func (s *stubBackups) CreateBackup(context.Context) (models.Backup, error) {
	s.calls++
	return models.Backup{}, s.err
}

func TestScheduler_PruneUsesRetention(t *testing.T) {
	events := &stubEvents{}
	clock := testutil.FixedClock()
	s := NewScheduler(events, nil, clock, 48*time.Hour)

	s.pruneEvents()
	assert.Equal(t, clock.Now().Add(-48*time.Hour), events.pruneBefore)

	events.pruneErr = errors.New("db down")
	s.pruneEvents()
}

func TestScheduler_Schedules(t *testing.T) {
	backups := &stubBackups{}
	s := NewScheduler(&stubEvents{}, backups, testutil.FixedClock(), time.Hour)

	require.NoError(t, s.SchedulePrune("@daily"))
	require.NoError(t, s.ScheduleBackup(""))
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.ScheduleBackup("0 3 * * *"))
	assert.Len(t, s.cron.Entries(), 2)

	require.Error(t, s.SchedulePrune("not a schedule"))
	require.Error(t, s.ScheduleBackup("61 * * * *"))

	s.runBackup()
	assert.Equal(t, 1, backups.calls)

	s.Run()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestScheduler_BackupDisabledWithoutService(t *testing.T) {
	s := NewScheduler(&stubEvents{}, nil, testutil.FixedClock(), time.Hour)
	require.NoError(t, s.ScheduleBackup("@hourly"))
	assert.Empty(t, s.cron.Entries())
}
