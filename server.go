package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/notesync-be/internal/api"
	"github.com/isdelr/notesync-be/internal/monitoring"
	"github.com/isdelr/notesync-be/internal/services"
	"github.com/isdelr/notesync-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func serve(ctx context.Context) error {
	startedAt := time.Now()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	noteService := services.NewNoteService(a.db, a.users, a.events, hub, a.clock, cfg.Policy)

	var backupService services.BackupServiceProvider
	if svc, err := a.backupService(ctx, noteService); err != nil {
		log.Warn().Err(err).Msg("Backups disabled")
	} else {
		backupService = svc
	}

	// Set up and run the background scheduler
	scheduler := monitoring.NewScheduler(a.events, backupService, a.clock, cfg.Events.Retention)
	if err := scheduler.SchedulePrune(cfg.Events.PruneSchedule); err != nil {
		return err
	}
	if err := scheduler.ScheduleBackup(cfg.Backup.Schedule); err != nil {
		return err
	}
	scheduler.Run()

	router := api.NewRouter(api.Deps{
		Users:          a.users,
		Notes:          noteService,
		Events:         a.events,
		Backups:        backupService,
		Hub:            hub,
		DB:             a.db,
		AllowedOrigins: cfg.AllowedOrigins,
		StartedAt:      startedAt,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).
			Str("delta_scope", cfg.Policy.DeltaScope).
			Str("delete_mode", cfg.Policy.DeleteMode).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
	return nil
}
