// Package postgres stores tracker links in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

const uniqueViolation = "23505"

type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open migrates the schema at databaseURL and connects a pool to it.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Repository, error) {
	if err := Migrate(databaseURL, logger); err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return New(pool, logger), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{pool: pool, logger: logger}
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Create(ctx context.Context, link *domain.TrackerLink) error {
	const q = `
INSERT INTO tracker_links (token, destination_url, click_count, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id`

	err := r.pool.QueryRow(ctx, q, link.Token, link.DestinationURL, link.ClickCount, link.CreatedAt.UTC()).Scan(&link.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateToken
		}
		return storageErr("create", err)
	}
	return nil
}

func (r *Repository) GetByToken(ctx context.Context, token string) (*domain.TrackerLink, error) {
	const q = `
SELECT id, token, destination_url, click_count, created_at
FROM tracker_links WHERE token = $1`
	return r.getOne(ctx, "get by token", q, token)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.TrackerLink, error) {
	const q = `
SELECT id, token, destination_url, click_count, created_at
FROM tracker_links WHERE id = $1`
	return r.getOne(ctx, "get by id", q, id)
}

func (r *Repository) getOne(ctx context.Context, op, q string, arg any) (*domain.TrackerLink, error) {
	var l domain.TrackerLink
	err := r.pool.QueryRow(ctx, q, arg).Scan(&l.ID, &l.Token, &l.DestinationURL, &l.ClickCount, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func (r *Repository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tracker_links WHERE token = $1)`, token).Scan(&exists)
	if err != nil {
		return false, storageErr("token exists", err)
	}
	return exists, nil
}

func (r *Repository) IncrementClicks(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tracker_links SET click_count = click_count + 1 WHERE token = $1`, token)
	if err != nil {
		return storageErr("increment clicks", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tracker_links WHERE token = $1`, token)
	if err != nil {
		return storageErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]domain.TrackerLink, error) {
	const q = `
SELECT id, token, destination_url, click_count, created_at
FROM tracker_links
ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

	var links []domain.TrackerLink
	for rows.Next() {
		var l domain.TrackerLink
		if err := rows.Scan(&l.ID, &l.Token, &l.DestinationURL, &l.ClickCount, &l.CreatedAt); err != nil {
			return nil, storageErr("list", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return links, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrStorage, err)
}

var _ ports.LinkStore = (*Repository)(nil)
