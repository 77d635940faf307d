package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/models"
	ws "github.com/isdelr/notesync-be/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/stretchr/testify/assert"
)

func TestWebSocketServe_LogsWithRequestContext(t *testing.T) {
	var buf bytes.Buffer
	h := NewWebSocketHandler(ws.NewHub())
	handler := hlog.NewHandler(zerolog.New(&buf))(
		hlog.RequestIDHandler("req_id", "")(http.HandlerFunc(h.Serve)))

	// A plain GET is not a websocket handshake, so the upgrade fails.
	req := httptest.NewRequest(http.MethodGet, "/notes/ws", nil)
	req = req.WithContext(auth.WithUser(req.Context(), models.User{ID: "u1", Username: "alice"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
	assert.Contains(t, buf.String(), `"req_id":`)
	assert.Contains(t, buf.String(), "Failed to upgrade websocket connection")
}

func TestWebSocketServe_Unauthenticated(t *testing.T) {
	h := NewWebSocketHandler(ws.NewHub())
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/notes/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
