package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/notesync-be/internal/api/handlers"
	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/models"
	"github.com/isdelr/notesync-be/internal/services"
	"github.com/isdelr/notesync-be/internal/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Deps is everything the router hands to its handlers. Backups may be nil.
type Deps struct {
	Users          services.UserServiceProvider
	Notes          services.NoteServiceProvider
	Events         services.EventServiceProvider
	Backups        services.BackupServiceProvider
	Hub            *websocket.Hub
	DB             handlers.Pinger
	AllowedOrigins []string
	StartedAt      time.Time
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(deps.Users)
	noteHandler := handlers.NewNoteHandler(deps.Notes)
	eventHandler := handlers.NewEventHandler(deps.Events)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.StartedAt)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)

	r.Get("/health", healthHandler.Health)
	r.Post("/register", userHandler.Register)
	r.Post("/custom-login", userHandler.Login)
	r.Post("/verify-token", userHandler.VerifyToken)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Users))

		r.Post("/reset-token", userHandler.ResetToken)
		r.Get("/user/group", userHandler.Group)

		r.Route("/notes", func(r chi.Router) {
			r.Post("/sync", noteHandler.Sync)
			r.Get("/updates", noteHandler.Updates)
			r.Get("/ws", wsHandler.Serve)
			r.Delete("/{id}", noteHandler.Delete)
		})

		// Operator endpoints
		r.Group(func(r chi.Router) {
			r.Use(RequireGroup(deps.Users, models.GroupTeachers))

			r.Get("/events", eventHandler.GetRecent)
			if deps.Backups != nil {
				r.Post("/backups", handlers.NewBackupHandler(deps.Backups).Create)
			}
		})
	})

	return r
}
