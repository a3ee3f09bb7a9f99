package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/services"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/logging"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, "json")

	// Note: On Vercel the local filesystem is ephemeral; point DATABASE_URL at
	// Turso, Postgres or Redis.
	repo, err := repository.Open(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		panic(err)
	}

	tokens := services.NewRandomTokenGenerator(repo, cfg.TokenLength, cfg.TokenMaxAttempts)
	service := services.NewLinkService(repo, tokens, logger, cfg.TokenMaxAttempts)
	mux = handler.NewRouter(cfg, service, logger)
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
