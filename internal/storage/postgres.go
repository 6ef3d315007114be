package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/ciel-content/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
	q    queries
}

var _ Repository = (*PostgresRepository)(nil)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{pool: pool, q: newQueries(sq.Dollar)}, nil
}

func newPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// SaveSession creates or updates a session
func (r *PostgresRepository) SaveSession(ctx context.Context, s *models.SessionState) error {
	query, args, err := r.q.upsertSession(s)
	if err != nil {
		return fmt.Errorf("failed to build session upsert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.SessionState, error) {
	query, args, err := r.q.selectSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build session query: %w", err)
	}

	s, err := scanSession(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// DeleteSession deletes a session and its drafts
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	query, args, err := r.q.deleteSession(id)
	if err != nil {
		return fmt.Errorf("failed to build session delete: %w", err)
	}

	// comment_drafts rows go with the session through ON DELETE CASCADE
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListIdleSessions returns sessions not updated since before, oldest first
func (r *PostgresRepository) ListIdleSessions(ctx context.Context, before time.Time, limit int) ([]*models.SessionState, error) {
	query, args, err := r.q.selectIdleSessions(before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build idle sessions query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
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
func (r *PostgresRepository) SaveDraft(ctx context.Context, sessionID, articleID string, draft models.CommentDraft) error {
	query, args, err := r.q.upsertDraft(sessionID, articleID, draft, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build draft upsert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// GetDrafts returns the drafts of a session keyed by article ID
func (r *PostgresRepository) GetDrafts(ctx context.Context, sessionID string) (map[string]models.CommentDraft, error) {
	query, args, err := r.q.selectDrafts(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to build drafts query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
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
func (r *PostgresRepository) DeleteDraft(ctx context.Context, sessionID, articleID string) error {
	query, args, err := r.q.deleteDraft(sessionID, articleID)
	if err != nil {
		return fmt.Errorf("failed to build draft delete: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
