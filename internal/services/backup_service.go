package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/isdelr/notesync-be/internal/backup"
	"github.com/isdelr/notesync-be/internal/models"
	"github.com/rs/zerolog/log"
)

// NoteSource lists every stored note.
type NoteSource interface {
	AllNotes(ctx context.Context) ([]models.Note, error)
}

// BackupServiceProvider defines the interface for backup services.
type BackupServiceProvider interface {
	CreateBackup(ctx context.Context) (models.Backup, error)
}

// BackupService archives all notes and hands the archive to a sink.
type BackupService struct {
	notes        NoteSource
	sink         backup.Sink
	eventService EventServiceProvider
	clock        Clock
	ageRecipient string
}

// NewBackupService creates a new BackupService. An empty ageRecipient stores
// archives unencrypted.
func NewBackupService(notes NoteSource, sink backup.Sink, eventService EventServiceProvider, clock Clock, ageRecipient string) *BackupService {
	return &BackupService{
		notes:        notes,
		sink:         sink,
		eventService: eventService,
		clock:        clock,
		ageRecipient: ageRecipient,
	}
}

// CreateBackup writes a zip archive containing notes.json to the sink.
func (s *BackupService) CreateBackup(ctx context.Context) (models.Backup, error) {
	notes, err := s.notes.AllNotes(ctx)
	if err != nil {
		return models.Backup{}, fmt.Errorf("failed to load notes: %w", err)
	}

	now := s.clock.Now().UTC()
	b := models.Backup{
		Name:      fmt.Sprintf("notes_%s.zip", now.Format("20060102150405")),
		Notes:     len(notes),
		CreatedAt: now,
	}

	var archive bytes.Buffer
	zipWriter := zip.NewWriter(&archive)
	writer, err := zipWriter.Create("notes.json")
	if err != nil {
		return models.Backup{}, err
	}
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(notes); err != nil {
		return models.Backup{}, fmt.Errorf("failed to encode notes: %w", err)
	}
	if err := zipWriter.Close(); err != nil {
		return models.Backup{}, fmt.Errorf("failed to finish archive: %w", err)
	}

	payload := archive.Bytes()
	if s.ageRecipient != "" {
		var encrypted bytes.Buffer
		if err := backup.Encrypt(s.ageRecipient, bytes.NewReader(payload), &encrypted); err != nil {
			return models.Backup{}, err
		}
		payload = encrypted.Bytes()
		b.Name += ".age"
		b.Encrypted = true
	}
	b.Size = int64(len(payload))

	b.Location, err = s.sink.Put(ctx, b.Name, bytes.NewReader(payload), b.Size)
	if err != nil {
		recordEvent(ctx, s.eventService, "backup.create", "error", fmt.Sprintf("Backup '%s' failed: %v", b.Name, err), nil)
		return models.Backup{}, err
	}

	log.Info().Str("location", b.Location).Int("notes", b.Notes).Int64("size", b.Size).Msg("Backup created")
	recordEvent(ctx, s.eventService, "backup.create", "info",
		fmt.Sprintf("Backup '%s' with %d note(s) written to %s.", b.Name, b.Notes, b.Location), nil)
	return b, nil
}
