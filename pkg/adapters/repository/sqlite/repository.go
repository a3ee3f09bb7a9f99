package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db *sql.DB
}

// IsRemoteURL reports whether dbURL points at a libsql (Turso) server.
func IsRemoteURL(dbURL string) bool {
	return strings.HasPrefix(dbURL, "libsql://") || strings.HasPrefix(dbURL, "wss://")
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if IsRemoteURL(dbURL) {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// A single connection serialises writers and keeps ":memory:"
		// databases alive for the lifetime of the handle.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS tracker_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL UNIQUE,
		destination_url TEXT NOT NULL,
		click_count INTEGER NOT NULL DEFAULT 0 CHECK (click_count >= 0),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tracker_links_created_at ON tracker_links(created_at);
	`
	_, err := db.Exec(query)
	return err
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.TrackerLink) error {
	query := `INSERT INTO tracker_links (token, destination_url, click_count, created_at)
			  VALUES (?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, link.Token, link.DestinationURL, link.ClickCount, link.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateToken
		}
		return storageErr("create", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("create", err)
	}
	link.ID = id
	return nil
}

func (r *SQLiteRepository) GetByToken(ctx context.Context, token string) (*domain.TrackerLink, error) {
	query := `SELECT id, token, destination_url, click_count, created_at
			  FROM tracker_links WHERE token = ?`
	return r.getOne(ctx, "get by token", query, token)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*domain.TrackerLink, error) {
	query := `SELECT id, token, destination_url, click_count, created_at
			  FROM tracker_links WHERE id = ?`
	return r.getOne(ctx, "get by id", query, id)
}

func (r *SQLiteRepository) getOne(ctx context.Context, op, query string, arg any) (*domain.TrackerLink, error) {
	var link domain.TrackerLink
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&link.ID, &link.Token, &link.DestinationURL, &link.ClickCount, &link.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return &link, nil
}

func (r *SQLiteRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tracker_links WHERE token = ?)`, token).Scan(&exists)
	if err != nil {
		return false, storageErr("token exists", err)
	}
	return exists, nil
}

// IncrementClicks bumps the counter in a single statement so concurrent
// redirects never lose an update.
func (r *SQLiteRepository) IncrementClicks(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tracker_links SET click_count = click_count + 1 WHERE token = ?`, token)
	if err != nil {
		return storageErr("increment clicks", err)
	}
	return expectOneRow(res, "increment clicks")
}

func (r *SQLiteRepository) Delete(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tracker_links WHERE token = ?`, token)
	if err != nil {
		return storageErr("delete", err)
	}
	return expectOneRow(res, "delete")
}

func (r *SQLiteRepository) List(ctx context.Context) ([]domain.TrackerLink, error) {
	query := `SELECT id, token, destination_url, click_count, created_at
			  FROM tracker_links ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
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

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	// libsql reports constraint failures as plain text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storageErr(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w: %w", op, domain.ErrStorage, err)
}

// Ensure interface compliance
var _ ports.LinkStore = (*SQLiteRepository)(nil)
