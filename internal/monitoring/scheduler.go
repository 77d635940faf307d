package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/notesync-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the periodic maintenance jobs: pruning the audit log and,
// when configured, backing up all notes.
type Scheduler struct {
	cron      *cron.Cron
	eventSvc  services.EventServiceProvider
	backupSvc services.BackupServiceProvider
	clock     services.Clock
	retention time.Duration
}

// NewScheduler creates a new scheduler instance. backupSvc may be nil when
// backups are disabled.
func NewScheduler(eventSvc services.EventServiceProvider, backupSvc services.BackupServiceProvider, clock services.Clock, retention time.Duration) *Scheduler {
	logger := cron.PrintfLogger(&log.Logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
		),
		eventSvc:  eventSvc,
		backupSvc: backupSvc,
		clock:     clock,
		retention: retention,
	}
}

// SchedulePrune registers the event pruning job.
func (s *Scheduler) SchedulePrune(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.pruneEvents); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	return nil
}

// ScheduleBackup registers the backup job. An empty spec disables it.
func (s *Scheduler) ScheduleBackup(spec string) error {
	if spec == "" || s.backupSvc == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.runBackup); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}
	return nil
}

// Run starts the scheduler in its own goroutine.
func (s *Scheduler) Run() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		log.Info().Msg("Background scheduler stopped")
	case <-ctx.Done():
		log.Warn().Msg("Background scheduler stop timed out")
	}
}

func (s *Scheduler) pruneEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := s.clock.Now().Add(-s.retention)
	n, err := s.eventSvc.PruneEvents(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to prune events")
		return
	}
	log.Info().Int64("removed", n).Time("before", cutoff).Msg("Scheduler: pruned events")
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.backupSvc.CreateBackup(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler: scheduled backup failed")
	}
}
