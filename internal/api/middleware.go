package api

import (
	"encoding/json"
	"net/http"

	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/services"
	"github.com/rs/zerolog/hlog"
)

// RequireGroup lets through only authenticated users in the named group. It
// must run after auth.Middleware.
func RequireGroup(groups services.GroupChecker, group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "Authentication credentials were not provided")
				return
			}

			member, err := groups.InGroup(r.Context(), user.ID, group)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Str("group", group).Msg("Failed to check group membership")
				deny(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !member {
				deny(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
