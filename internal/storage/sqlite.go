package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/terra-clan/ciel-content/internal/models"
)

// SQLiteRepository implements Repository on a local SQLite file
type SQLiteRepository struct {
	db   *sql.DB
	path string
	q    queries
}

var _ Repository = (*SQLiteRepository)(nil)

type sqliteMigration struct {
	version     int
	description string
	up          string
}

// sqliteMigrations is applied in order; append new steps with increasing
// versions.
var sqliteMigrations = []sqliteMigration{
	{
		version:     1,
		description: "sessions and comment drafts",
		up: `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    search      TEXT    NOT NULL DEFAULT '',
    category    TEXT    NOT NULL DEFAULT '',
    sort_key    TEXT    NOT NULL DEFAULT 'recent',
    page        INTEGER NOT NULL DEFAULT 1,
    page_size   INTEGER NOT NULL DEFAULT 9,
    level       TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions (updated_at);

CREATE TABLE IF NOT EXISTS comment_drafts (
    session_id  TEXT NOT NULL,
    article_id  TEXT NOT NULL,
    author      TEXT NOT NULL DEFAULT '',
    content     TEXT NOT NULL DEFAULT '',
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (session_id, article_id)
);`,
	},
}

// NewSQLiteRepository creates or opens the database at path and brings its
// schema up to date.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteRepository{db: db, path: path, q: newQueries(sq.Question)}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}

		slog.Info("applying migration", "version", m.version, "description", m.description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.version, err)
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

// Path returns the database file path
func (r *SQLiteRepository) Path() string {
	return r.path
}

// Ping checks database connectivity
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// SaveSession creates or updates a session
func (r *SQLiteRepository) SaveSession(ctx context.Context, s *models.SessionState) error {
	query, args, err := r.q.upsertSession(s)
	if err != nil {
		return fmt.Errorf("failed to build session upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*models.SessionState, error) {
	query, args, err := r.q.selectSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build session query: %w", err)
	}

	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// DeleteSession deletes a session and its drafts
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	draftsQuery, draftsArgs, err := r.q.deleteDrafts(id)
	if err != nil {
		return fmt.Errorf("failed to build drafts delete: %w", err)
	}
	sessionQuery, sessionArgs, err := r.q.deleteSession(id)
	if err != nil {
		return fmt.Errorf("failed to build session delete: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, draftsQuery, draftsArgs...); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete drafts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sessionQuery, sessionArgs...); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session delete: %w", err)
	}
	return nil
}

// ListIdleSessions returns sessions not updated since before, oldest first
func (r *SQLiteRepository) ListIdleSessions(ctx context.Context, before time.Time, limit int) ([]*models.SessionState, error) {
	query, args, err := r.q.selectIdleSessions(before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build idle sessions query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SessionState
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// SaveDraft creates or replaces the draft of an article
func (r *SQLiteRepository) SaveDraft(ctx context.Context, sessionID, articleID string, draft models.CommentDraft) error {
	query, args, err := r.q.upsertDraft(sessionID, articleID, draft, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build draft upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// GetDrafts returns the drafts of a session keyed by article ID
func (r *SQLiteRepository) GetDrafts(ctx context.Context, sessionID string) (map[string]models.CommentDraft, error) {
	query, args, err := r.q.selectDrafts(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to build drafts query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get drafts: %w", err)
	}
	defer rows.Close()

	drafts := make(map[string]models.CommentDraft)
	for rows.Next() {
		var articleID string
		var d models.CommentDraft
		if err := rows.Scan(&articleID, &d.Author, &d.Content); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts[articleID] = d
	}

	return drafts, rows.Err()
}

// DeleteDraft removes the draft of an article
func (r *SQLiteRepository) DeleteDraft(ctx context.Context, sessionID, articleID string) error {
	query, args, err := r.q.deleteDraft(sessionID, articleID)
	if err != nil {
		return fmt.Errorf("failed to build draft delete: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
