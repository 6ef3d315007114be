package storage

import (
	"context"
	"time"

	"github.com/terra-clan/ciel-content/internal/models"
)

// Repository persists visitor sessions and their comment drafts
type Repository interface {
	// Sessions
	SaveSession(ctx context.Context, s *models.SessionState) error
	GetSession(ctx context.Context, id string) (*models.SessionState, error)
	DeleteSession(ctx context.Context, id string) error
	ListIdleSessions(ctx context.Context, before time.Time, limit int) ([]*models.SessionState, error)

	// Drafts
	SaveDraft(ctx context.Context, sessionID, articleID string, draft models.CommentDraft) error
	GetDrafts(ctx context.Context, sessionID string) (map[string]models.CommentDraft, error)
	DeleteDraft(ctx context.Context, sessionID, articleID string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
