package handlers

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	mw "dinlipi/internal/middleware"
)

// Deps is everything the HTTP layer needs from the rest of the server.
type Deps struct {
	Logger      *zap.Logger
	Registry    *prometheus.Registry
	CORSOrigins []string
	Auth        AuthService
	Verifier    mw.Authenticator
	Entries     EntryStore
	Practices   PracticeStore
	Moods       MoodStore
	Profiles    ProfileStore
}

func NewRouter(d Deps) http.Handler {
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// browsers refuse credentialed responses for a wildcard origin
	credentials := !slices.Contains(origins, "*")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Recoverer(d.Logger))
	r.Use(mw.ZapRequestLogger(d.Logger))
	r.Use(mw.NewMetrics(d.Registry).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: credentials,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	authHandler := NewAuthHandler(d.Auth)
	entryHandler := NewEntryHandler(d.Entries)
	practiceHandler := NewPracticeHandler(d.Practices)
	moodHandler := NewMoodHandler(d.Moods)
	profileHandler := NewProfileHandler(d.Profiles)
	authMW := mw.NewAuthMiddleware(d.Verifier)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/signup", authHandler.Signup)
		api.Post("/auth/login", authHandler.Login)
		api.Post("/auth/refresh", authHandler.Refresh)
		api.Post("/auth/recover", authHandler.Recover)
		api.Post("/auth/recover/confirm", authHandler.RecoverConfirm)
		api.Get("/auth/oauth/{provider}", authHandler.OAuthStart)
		api.Get("/auth/oauth/{provider}/callback", authHandler.OAuthCallback)
		api.With(authMW.OptionalAuth).Post("/auth/logout", authHandler.Logout)

		api.Get("/moods", moodHandler.Catalog)

		api.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireAuth)

			pr.Put("/auth/password", authHandler.UpdatePassword)
			pr.Get("/auth/session", authHandler.Session)

			pr.Get("/entries", entryHandler.List)
			pr.Post("/entries", entryHandler.Create)
			pr.Get("/entries/date/{date}", entryHandler.GetByDate)
			pr.Get("/entries/{id}", entryHandler.Get)
			pr.Put("/entries/{id}", entryHandler.Update)
			pr.Delete("/entries/{id}", entryHandler.Delete)
			pr.Get("/tags", entryHandler.Tags)
			pr.Get("/calendar", entryHandler.Calendar)

			pr.Get("/mood-entries", moodHandler.List)
			pr.Post("/mood-entries", moodHandler.Create)
			pr.Get("/mood-entries/date/{date}", moodHandler.GetByDate)
			pr.Get("/mood-entries/summary", moodHandler.Summary)

			pr.Get("/practices", practiceHandler.List)
			pr.Post("/practices", practiceHandler.Create)
			pr.Get("/practices/{id}", practiceHandler.Get)
			pr.Put("/practices/{id}", practiceHandler.Update)
			pr.Delete("/practices/{id}", practiceHandler.Delete)
			pr.Get("/practices/{id}/entries", practiceHandler.Entries)
			pr.Post("/practices/{id}/entries", practiceHandler.CreateEntry)
			pr.Post("/practice-entries/{id}/complete", practiceHandler.CompleteEntry)

			pr.Get("/profile", profileHandler.Get)
			pr.Put("/profile", profileHandler.Update)
		})
	})

	return r
}
