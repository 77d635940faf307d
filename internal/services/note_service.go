package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/isdelr/notesync-be/internal/config"
	"github.com/isdelr/notesync-be/internal/database"
	"github.com/isdelr/notesync-be/internal/models"
	"github.com/rs/zerolog/log"
)

// GroupChecker answers group membership questions for the note gates.
type GroupChecker interface {
	InGroup(ctx context.Context, userID, group string) (bool, error)
}

// ChangeNotifier is told which notes changed. An empty userID addresses every
// connected user.
type ChangeNotifier interface {
	NotesChanged(userID string, ids []string, serverTime int64)
}

// NoteServiceProvider defines the interface for note services.
type NoteServiceProvider interface {
	Sync(ctx context.Context, user models.User, entries []SyncNote) (SyncResult, error)
	Updates(ctx context.Context, user models.User, since int64) ([]models.Note, int64, error)
	Delete(ctx context.Context, user models.User, id string) (DeleteResult, error)
	AllNotes(ctx context.Context) ([]models.Note, error)
}

// SyncNote is one client-side note in a sync batch. Pointer fields are
// optional.
type SyncNote struct {
	ID         *string `json:"id"`
	Author     *string `json:"author"`
	Subject    string  `json:"subject"`
	Text       string  `json:"text"`
	CreatedAt  *int64  `json:"created_at"`
	UpdatedAt  *int64  `json:"updated_at"`
	UploadedAt *int64  `json:"uploaded_at"`
	Deleted    *bool   `json:"deleted"`
	ClientID   *string `json:"client_id"`
}

// SyncResult holds the rows as stored after a sync batch.
type SyncResult struct {
	Notes      []models.Note
	ServerTime int64
}

// DeleteResult acknowledges a deletion. UpdatedAt is set for soft deletes.
type DeleteResult struct {
	ID        string
	UpdatedAt *int64
}

// NoteService implements last-write-wins note synchronization.
type NoteService struct {
	db       *database.DB
	groups   GroupChecker
	events   EventServiceProvider
	notifier ChangeNotifier
	clock    Clock
	policy   config.Policy
}

// NewNoteService creates a new NoteService. notifier may be nil.
func NewNoteService(db *database.DB, groups GroupChecker, events EventServiceProvider, notifier ChangeNotifier, clock Clock, policy config.Policy) *NoteService {
	return &NoteService{
		db:       db,
		groups:   groups,
		events:   events,
		notifier: notifier,
		clock:    clock,
		policy:   policy,
	}
}

const noteColumns = `n.id, n.author_id, u.username, n.author_name, n.client_id, n.subject, n.text,
	n.created_at, n.updated_at, n.uploaded_at, n.deleted`

func scanNote(rows interface{ Scan(...any) error }) (models.Note, error) {
	var n models.Note
	var clientID sql.NullString
	err := rows.Scan(&n.ID, &n.AuthorID, &n.AuthorUsername, &n.AuthorName, &clientID, &n.Subject, &n.Text,
		&n.CreatedAt, &n.UpdatedAt, &n.UploadedAt, &n.Deleted)
	if err != nil {
		return models.Note{}, err
	}
	if clientID.Valid {
		n.ClientID = &clientID.String
	}
	return n, nil
}

// Sync upserts every entry independently. Entries that are malformed, owned by
// another user, or fail to store are left out of the result.
func (s *NoteService) Sync(ctx context.Context, user models.User, entries []SyncNote) (SyncResult, error) {
	if !s.policy.StudentsCanSync {
		student, err := s.groups.InGroup(ctx, user.ID, models.GroupStudents)
		if err != nil {
			return SyncResult{}, err
		}
		if student {
			return SyncResult{}, forbiddenf("Forbidden: Students cannot sync notes to server")
		}
	}

	notes := make([]models.Note, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for i, entry := range entries {
		note, err := s.upsert(ctx, user, entry)
		if err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Int("entry", i).Msg("Skipped sync entry")
			continue
		}
		notes = append(notes, note)
		ids = append(ids, note.ID)
	}

	serverTime := s.clock.Now().UnixMilli()
	if len(notes) > 0 {
		recordEvent(ctx, s.events, "note.sync", "info",
			fmt.Sprintf("User '%s' synced %d note(s).", user.Username, len(notes)), &user.ID)
		s.notify(user.ID, ids, serverTime)
	}
	return SyncResult{Notes: notes, ServerTime: serverTime}, nil
}

func (s *NoteService) upsert(ctx context.Context, user models.User, entry SyncNote) (models.Note, error) {
	id, err := noteID(entry.ID)
	if err != nil {
		return models.Note{}, err
	}
	if err := validateEntry(entry); err != nil {
		return models.Note{}, err
	}

	now := s.clock.Now().UnixMilli()
	existing, err := s.getNote(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return s.insert(ctx, user, id, entry, now)
	}
	if err != nil {
		return models.Note{}, err
	}
	if existing.AuthorID != user.ID {
		return models.Note{}, forbiddenf("note %s belongs to another user", id)
	}

	note := existing
	note.Subject = entry.Subject
	note.Text = entry.Text
	if entry.Author != nil {
		note.AuthorName = *entry.Author
	}
	if entry.ClientID != nil {
		note.ClientID = entry.ClientID
	}
	note.CreatedAt = valueOr(entry.CreatedAt, existing.CreatedAt)
	note.UpdatedAt = valueOr(entry.UpdatedAt, now)
	note.UploadedAt = valueOr(entry.UploadedAt, now)
	if entry.Deleted != nil && *entry.Deleted != existing.Deleted {
		if note.Deleted, err = s.syncedDeleted(ctx, user, *entry.Deleted, existing.Deleted); err != nil {
			return models.Note{}, err
		}
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE notes SET author_name = ?, client_id = ?, subject = ?, text = ?,
			created_at = ?, updated_at = ?, uploaded_at = ?, deleted = ?
		WHERE id = ? AND author_id = ?`),
		note.AuthorName, note.ClientID, note.Subject, note.Text,
		note.CreatedAt, note.UpdatedAt, note.UploadedAt, note.Deleted,
		note.ID, user.ID,
	)
	if err != nil {
		return models.Note{}, err
	}
	return note, nil
}

func (s *NoteService) insert(ctx context.Context, user models.User, id string, entry SyncNote, now int64) (models.Note, error) {
	note := models.Note{
		ID:             id,
		AuthorID:       user.ID,
		AuthorUsername: user.Username,
		AuthorName:     user.Username,
		ClientID:       entry.ClientID,
		Subject:        entry.Subject,
		Text:           entry.Text,
		CreatedAt:      valueOr(entry.CreatedAt, now),
		UpdatedAt:      valueOr(entry.UpdatedAt, now),
		UploadedAt:     valueOr(entry.UploadedAt, now),
	}
	if entry.Author != nil && *entry.Author != "" {
		note.AuthorName = *entry.Author
	}
	if entry.Deleted != nil && *entry.Deleted {
		var err error
		if note.Deleted, err = s.syncedDeleted(ctx, user, true, false); err != nil {
			return models.Note{}, err
		}
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO notes (id, author_id, author_name, client_id, subject, text, created_at, updated_at, uploaded_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		note.ID, note.AuthorID, note.AuthorName, note.ClientID, note.Subject, note.Text,
		note.CreatedAt, note.UpdatedAt, note.UploadedAt, note.Deleted,
	)
	if err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// syncedDeleted decides the deleted flag for a synced entry that asks to
// change it. The flag only exists under soft delete, and flipping it either
// way takes the same permission as Delete.
func (s *NoteService) syncedDeleted(ctx context.Context, user models.User, requested, current bool) (bool, error) {
	if s.policy.DeleteMode != config.DeleteSoft {
		return current, nil
	}
	allowed, err := s.canDelete(ctx, user)
	if err != nil {
		return current, err
	}
	if !allowed {
		log.Warn().Str("user_id", user.ID).Bool("deleted", requested).Msg("Ignored deleted flag from user without delete permission")
		return current, nil
	}
	return requested, nil
}

// canDelete reports whether the user may delete notes they own.
func (s *NoteService) canDelete(ctx context.Context, user models.User) (bool, error) {
	if !s.policy.DeleteRequiresTeacher {
		return true, nil
	}
	return s.groups.InGroup(ctx, user.ID, models.GroupTeachers)
}

// noteID returns the canonical form of a client id, or a fresh one when the
// client sent none.
func noteID(raw *string) (string, error) {
	if raw == nil || *raw == "" {
		return uuid.New().String(), nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return "", validationf("invalid note id %q", *raw)
	}
	return id.String(), nil
}

func validateEntry(entry SyncNote) error {
	if utf8.RuneCountInString(entry.Subject) > models.MaxSubjectLength {
		return validationf("subject longer than %d characters", models.MaxSubjectLength)
	}
	if entry.Author != nil && utf8.RuneCountInString(*entry.Author) > models.MaxAuthorNameLength {
		return validationf("author longer than %d characters", models.MaxAuthorNameLength)
	}
	if entry.ClientID != nil && utf8.RuneCountInString(*entry.ClientID) > models.MaxClientIDLength {
		return validationf("client_id longer than %d characters", models.MaxClientIDLength)
	}
	return nil
}

func valueOr(v *int64, fallback int64) int64 {
	if v != nil {
		return *v
	}
	return fallback
}

func (s *NoteService) getNote(ctx context.Context, id string) (models.Note, error) {
	row := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT "+noteColumns+" FROM notes n JOIN users u ON u.id = n.author_id WHERE n.id = ?"), id)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Note{}, notFoundf("Note not found or invalid ID")
		}
		return models.Note{}, err
	}
	return note, nil
}

// Updates returns notes changed after since, oldest change first, together
// with the server time to use as the next watermark.
func (s *NoteService) Updates(ctx context.Context, user models.User, since int64) ([]models.Note, int64, error) {
	query := "SELECT " + noteColumns + " FROM notes n JOIN users u ON u.id = n.author_id WHERE n.updated_at > ?"
	args := []any{since}
	if s.policy.DeltaScope != config.ScopeAll {
		query += " AND n.author_id = ?"
		args = append(args, user.ID)
	}
	query += " ORDER BY n.updated_at ASC, n.id ASC"

	notes, err := s.queryNotes(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return notes, s.clock.Now().UnixMilli(), nil
}

// AllNotes returns every stored note. Used by backups.
func (s *NoteService) AllNotes(ctx context.Context) ([]models.Note, error) {
	return s.queryNotes(ctx, "SELECT "+noteColumns+" FROM notes n JOIN users u ON u.id = n.author_id ORDER BY n.created_at ASC, n.id ASC")
}

func (s *NoteService) queryNotes(ctx context.Context, query string, args ...any) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// Delete removes a note, or flags it deleted under the soft delete policy.
// Only the owner may delete, and only while in the teachers group when the
// policy requires it.
func (s *NoteService) Delete(ctx context.Context, user models.User, id string) (DeleteResult, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return DeleteResult{}, notFoundf("Note not found or invalid ID")
	}
	id = parsed.String()

	note, err := s.getNote(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if note.AuthorID != user.ID {
		return DeleteResult{}, forbiddenf("Forbidden")
	}
	allowed, err := s.canDelete(ctx, user)
	if err != nil {
		return DeleteResult{}, err
	}
	if !allowed {
		return DeleteResult{}, forbiddenf("You do not have permission to delete this note")
	}

	result := DeleteResult{ID: id}
	now := s.clock.Now().UnixMilli()
	if s.policy.DeleteMode == config.DeleteSoft {
		_, err = s.db.ExecContext(ctx, s.db.Rebind("UPDATE notes SET deleted = ?, updated_at = ? WHERE id = ?"), true, now, id)
		result.UpdatedAt = &now
	} else {
		_, err = s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM notes WHERE id = ?"), id)
	}
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete note: %w", err)
	}

	recordEvent(ctx, s.events, "note.delete", "info",
		fmt.Sprintf("User '%s' deleted note %s.", user.Username, id), &user.ID)
	s.notify(user.ID, []string{id}, now)
	return result, nil
}

func (s *NoteService) notify(ownerID string, ids []string, serverTime int64) {
	if s.notifier == nil {
		return
	}
	target := ownerID
	if s.policy.DeltaScope == config.ScopeAll {
		target = ""
	}
	s.notifier.NotesChanged(target, ids, serverTime)
}
