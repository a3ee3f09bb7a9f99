package handler

import (
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService, logger *slog.Logger) http.Handler {
	h := NewHTTPHandler(service, cfg, logger)
	redirect := NewRedirectHandler(service, cfg, logger)
	mw := NewMiddleware(cfg, logger)
	authHandler := NewAuthHandler(cfg, logger)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /auth/login", authHandler.PasswordLogin)

	// Protected Routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /api/v1/links", h.Create)
	protectedMux.HandleFunc("GET /api/v1/links", h.List)
	protectedMux.HandleFunc("GET /api/v1/links/{ref}", h.Get)
	protectedMux.HandleFunc("DELETE /api/v1/links/{ref}", h.Delete)

	mux.Handle("/api/v1/", mw.AuthMiddleware(protectedMux))

	// Tracker requests are answered before the mux sees them.
	return mw.RequestLogger(redirect.Wrap(mux))
}
