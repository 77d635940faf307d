package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/isdelr/notesync-be/internal/monitoring"
	"github.com/isdelr/notesync-be/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealth_Degraded(t *testing.T) {
	h := NewHealthHandler(stubPinger{err: errors.New("connection refused")}, time.Now().Add(-time.Minute))
	h.hostStats = func(context.Context) (monitoring.HostStats, error) {
		return monitoring.HostStats{Hostname: "box"}, errors.New("load average unsupported")
	}

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unavailable", body["database"])
	assert.GreaterOrEqual(t, body["uptimeSeconds"], float64(60))
	assert.Equal(t, "box", body["host"].(map[string]interface{})["hostname"])
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrAuthentication, http.StatusUnauthorized},
		{fmt.Errorf("loading note: %w", services.ErrForbidden), http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "failed")
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		if tt.status == http.StatusInternalServerError {
			assert.Equal(t, "Internal server error", body["error"])
		}
	}
}
