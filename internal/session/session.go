package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/terra-clan/ciel-content/internal/article"
	"github.com/terra-clan/ciel-content/internal/browse"
	"github.com/terra-clan/ciel-content/internal/catalog"
	"github.com/terra-clan/ciel-content/internal/interaction"
	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/storage"
	"github.com/terra-clan/ciel-content/internal/view"
)

// Session is one visitor's coordinator state: the listing they browse, the
// articles they opened, their drafts and the formation level they picked.
type Session struct {
	ID        string
	CreatedAt time.Time

	Browser      *browse.Browser
	Interactions *interaction.Coordinator
	Selection    *catalog.Selection

	api      API
	repo     storage.Repository
	timeout  time.Duration
	notifier *Notifier
	now      func() time.Time

	mu        sync.Mutex
	articles  map[string]*article.View
	updatedAt time.Time
}

// Touch marks the session as used
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = s.now()
}

// UpdatedAt is the last time the session was used
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// State returns the persisted part of the session
func (s *Session) State() *models.SessionState {
	return &models.SessionState{
		ID:        s.ID,
		Query:     s.Browser.Query(),
		Level:     s.Selection.Level(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt(),
	}
}

// Persist saves the session's query and level
func (s *Session) Persist(ctx context.Context) error {
	s.Touch()
	if err := s.repo.SaveSession(ctx, s.State()); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", s.ID, err)
	}
	return nil
}

// Article returns the detail view of an article, creating it on first use
func (s *Session) Article(id string) *article.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.articles[id]; ok {
		return v
	}

	v := article.NewView(id, s.api,
		article.WithTimeout(s.timeout),
		article.WithOnChange(s.notifier.Notify),
	)
	s.articles[id] = v
	s.Interactions.AddSink(v)
	return v
}

// Listing projects the listing screen
func (s *Session) Listing() view.Listing {
	return s.Browser.Snapshot()
}

// ArticlePage projects the detail screen of an opened article
func (s *Session) ArticlePage(id string) view.ArticlePage {
	return view.ProjectArticle(
		s.Article(id).Snapshot(),
		s.Interactions.Draft(id),
		s.Interactions.Submitting(id),
	)
}

// Subscribe returns a channel signalled whenever the session's screens may
// have changed
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}

// Notify signals subscribers
func (s *Session) Notify() {
	s.notifier.Notify()
}

func (s *Session) close() {
	s.mu.Lock()
	for id, v := range s.articles {
		s.Interactions.RemoveSink(v)
		delete(s.articles, id)
	}
	s.mu.Unlock()

	s.Interactions.RemoveSink(s.Browser)
	s.notifier.Close()
}

// draftStore persists one session's drafts
type draftStore struct {
	repo      storage.Repository
	sessionID string
}

func (d draftStore) SaveDraft(ctx context.Context, articleID string, draft models.CommentDraft) error {
	return d.repo.SaveDraft(ctx, d.sessionID, articleID, draft)
}

func (d draftStore) DeleteDraft(ctx context.Context, articleID string) error {
	return d.repo.DeleteDraft(ctx, d.sessionID, articleID)
}
