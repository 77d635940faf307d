package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/models"
	"github.com/isdelr/notesync-be/internal/services"
	"github.com/rs/zerolog/hlog"
)

// NoteHandler handles HTTP requests for note synchronization.
type NoteHandler struct {
	service services.NoteServiceProvider
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(service services.NoteServiceProvider) *NoteHandler {
	return &NoteHandler{service: service}
}

// SyncPayload is the body of a sync request. Entries are decoded one at a time
// so a malformed entry only drops itself.
type SyncPayload struct {
	Notes []json.RawMessage `json:"notes"`
}

// Sync upserts a batch of notes.
func (h *NoteHandler) Sync(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided")
		return
	}

	var payload SyncPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entries := make([]services.SyncNote, 0, len(payload.Notes))
	for i, raw := range payload.Notes {
		var entry services.SyncNote
		if err := json.Unmarshal(raw, &entry); err != nil {
			hlog.FromRequest(r).Debug().Err(err).Int("entry", i).Msg("Dropped undecodable sync entry")
			continue
		}
		entries = append(entries, entry)
	}

	res, err := h.service.Sync(r.Context(), user, entries)
	if err != nil {
		writeError(w, r, err, "Failed to sync notes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"applied":    len(res.Notes),
		"notes":      res.Notes,
		"serverTime": res.ServerTime,
	})
}

// Updates returns the caller's notes changed after the since watermark.
func (h *NoteHandler) Updates(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided")
		return
	}

	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "since must be an integer")
			return
		}
		since = v
	}

	notes, serverTime, err := h.service.Updates(r.Context(), user, since)
	if err != nil {
		writeError(w, r, err, "Failed to load updates")
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"notes":      notes,
		"serverTime": serverTime,
	})
}

// Delete removes a single note owned by the caller.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided")
		return
	}

	res, err := h.service.Delete(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Failed to delete note")
		return
	}

	body := map[string]interface{}{
		"success": true,
		"id":      res.ID,
	}
	if res.UpdatedAt != nil {
		body["updated_at"] = *res.UpdatedAt
	}
	writeJSON(w, http.StatusOK, body)
}
