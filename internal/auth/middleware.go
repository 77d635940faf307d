package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/isdelr/notesync-be/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Verifier resolves a bearer credential to its user.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.User, error)
}

type contextKey string

// UserKey is the context key for the authenticated user.
const UserKey = contextKey("user")

// UserFromContext returns the user stored by Middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(UserKey).(models.User)
	return user, ok
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// Middleware rejects requests without a valid credential before they reach a
// handler and passes the authenticated user down via context.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := TokenFromRequest(r)
			if tokenStr == "" {
				unauthorized(w, "Authentication credentials were not provided")
				return
			}

			user, err := v.Verify(r.Context(), tokenStr)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("Rejected bearer credential")
				unauthorized(w, "Invalid token")
				return
			}

			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", user.ID)
			})
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
