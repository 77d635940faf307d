package handlers

import (
	"net/http"

	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/services"
	"github.com/rs/zerolog/hlog"
)

// UserHandler handles HTTP requests for accounts and credentials.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// AuthPayload defines the structure for register and login requests.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyPayload defines the structure for token verification requests.
type VerifyPayload struct {
	Token string `json:"token"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := h.service.Register(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, r, err, "Failed to register user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":    token,
		"username": user.Username,
	})
}

// Login checks the credentials and returns the user's permanent token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := h.service.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("username", payload.Username).Msg("Failed authentication attempt")
		writeError(w, r, err, "Failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"token":    token,
		"username": user.Username,
	})
}

// VerifyToken reports whether a token is valid and whose it is.
func (h *UserHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var payload VerifyPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Verify(r.Context(), auth.ExtractToken(payload.Token))
	if err != nil {
		writeError(w, r, err, "Failed to verify token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"username": user.Username,
	})
}

// ResetToken replaces the caller's permanent token.
func (h *UserHandler) ResetToken(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided")
		return
	}

	token, err := h.service.ResetToken(r.Context(), user)
	if err != nil {
		writeError(w, r, err, "Failed to reset token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
	})
}

// Group returns the caller's first group, or null.
func (h *UserHandler) Group(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided")
		return
	}

	group, err := h.service.GetGroup(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err, "Failed to look up group")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"group": group})
}
