// Package repository picks a LinkStore backend from a database URL.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/repository/redis"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendLibSQL   Backend = "libsql"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// DetectBackend maps a DATABASE_URL onto the store that serves it.
// Anything without a recognised scheme is treated as a local SQLite file.
func DetectBackend(databaseURL string) Backend {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return BackendPostgres
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		return BackendRedis
	case sqlite.IsRemoteURL(databaseURL):
		return BackendLibSQL
	default:
		return BackendSQLite
	}
}

func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (ports.LinkStore, error) {
	backend := DetectBackend(databaseURL)
	logger.Info("opening link store", "backend", string(backend))

	var (
		store ports.LinkStore
		err   error
	)
	switch backend {
	case BackendPostgres:
		var repo *postgres.Repository
		if repo, err = postgres.Open(ctx, databaseURL, logger); err == nil {
			store = repo
		}
	case BackendRedis:
		var repo *redis.Repository
		if repo, err = redis.Open(ctx, databaseURL); err == nil {
			store = repo
		}
	default:
		var repo *sqlite.SQLiteRepository
		if repo, err = sqlite.NewSQLiteRepository(databaseURL); err == nil {
			store = repo
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	return store, nil
}
