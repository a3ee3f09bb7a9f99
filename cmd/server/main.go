package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/services"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if raw := os.Getenv("TRACKER_PREFIX"); config.IsReservedPrefix(raw) {
		logger.Warn("TRACKER_PREFIX collides with a built-in route, using default", "requested", raw, "prefix", cfg.TrackerPrefix)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Repository
	repo, err := repository.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open link store", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize Service
	tokens := services.NewRandomTokenGenerator(repo, cfg.TokenLength, cfg.TokenMaxAttempts)
	service := services.NewLinkService(repo, tokens, logger, cfg.TokenMaxAttempts)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(cfg, service, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "prefix", cfg.TrackerPrefix)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
