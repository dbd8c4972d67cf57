package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes constructs the HTTP router for the session daemon.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))
	r.Use(CORSMiddleware(a.Config.Server.ClientOriginURLs))
	if !a.Config.Server.DevMode {
		r.Use(SecurityHeadersMiddleware)
	}

	r.Get("/login", a.handleLogin)
	r.Get("/callback", a.handleCallback)
	r.Post("/logout", a.handleLogout)

	r.Get("/session", a.handleSession)
	r.Get("/session/can", a.handleCan)

	r.Get("/api/drinks", a.handleDrinks)
	r.Get("/api/drinks-detail", a.handleDrinkDetail)

	r.Get("/healthz", a.handleHealthz)
	r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())

	return r
}
