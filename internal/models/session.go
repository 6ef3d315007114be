package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/ciel-content/internal/query"
)

// SessionState is the persisted part of a visitor session: what they were
// looking at. Comment drafts are stored alongside, keyed by article.
type SessionState struct {
	ID        string           `json:"id"`
	Query     query.Descriptor `json:"query"`
	Level     Level            `json:"level,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// IsIdle reports whether the session has not been touched for longer than ttl.
func (s *SessionState) IsIdle(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.UpdatedAt) > ttl
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// CreateSessionResponse is returned after creating a visitor session.
type CreateSessionResponse struct {
	ID        string           `json:"id"`
	Query     query.Descriptor `json:"query"`
	StreamURL string           `json:"stream_url"`
	CreatedAt time.Time        `json:"created_at"`
}

// QueryRequest changes the listing's search, filter and sort.
type QueryRequest struct {
	Search   *string `json:"search,omitempty"`
	Category *string `json:"category,omitempty"`
	Sort     *string `json:"sort,omitempty"`
}

// PageRequest jumps to a page.
type PageRequest struct {
	Page int `json:"page"`
}

// LevelRequest selects a formation level.
type LevelRequest struct {
	Level string `json:"level"`
}

// LikeResponse carries a server-confirmed like count.
type LikeResponse struct {
	ID    string `json:"id"`
	Likes int    `json:"likes"`
}
