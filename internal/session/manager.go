// Package session keeps one coordinator per visitor and persists what a
// returning visitor needs to pick up where they left off.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/ciel-content/internal/article"
	"github.com/terra-clan/ciel-content/internal/browse"
	"github.com/terra-clan/ciel-content/internal/catalog"
	"github.com/terra-clan/ciel-content/internal/interaction"
	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/reconciler"
	"github.com/terra-clan/ciel-content/internal/storage"
)

// ErrSessionNotFound is returned for an unknown or expired session ID
var ErrSessionNotFound = errors.New("session not found")

// API is the upstream contract a session needs
type API interface {
	reconciler.Fetcher
	interaction.API
	article.API
}

// Config holds session settings
type Config struct {
	PageSize       int
	RequestTimeout time.Duration
	IdleTTL        time.Duration
}

// Manager is safe for concurrent use
type Manager struct {
	api  API
	repo storage.Repository
	cfg  Config
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(api API, repo storage.Repository, cfg Config) *Manager {
	if cfg.PageSize <= 0 {
		cfg.PageSize = query.DefaultPageSize
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 24 * time.Hour
	}
	return &Manager{
		api:      api,
		repo:     repo,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session on the first page of recent articles and starts
// loading it
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	now := m.now().UTC()
	state := &models.SessionState{
		ID:        models.NewSessionID(),
		Query:     query.Default(m.cfg.PageSize),
		Level:     models.LevelBacPro,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.repo.SaveSession(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s := m.build(state, nil)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.Browser.Load(ctx)

	slog.Info("session created", "session_id", s.ID)
	return s, nil
}

// Get returns a live session, restoring it from storage if this process
// does not hold it
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.Touch()
		return s, nil
	}

	state, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if state == nil || state.IsIdle(m.now(), m.cfg.IdleTTL) {
		return nil, ErrSessionNotFound
	}

	drafts, err := m.repo.GetDrafts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		existing.Touch()
		return existing, nil
	}
	s = m.build(state, drafts)
	m.sessions[id] = s
	m.mu.Unlock()

	s.Touch()
	s.Browser.Load(ctx)

	slog.Info("session restored", "session_id", id, "query", state.Query.Key(), "drafts", len(drafts))
	return s, nil
}

// Close ends a session and deletes its persisted state
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.close()
	}

	if err := m.repo.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session closed", "session_id", id)
	return nil
}

// ExpireIdle drops sessions unused for longer than the idle TTL, in memory
// and in storage, and returns how many were expired
func (m *Manager) ExpireIdle(ctx context.Context) (int, error) {
	now := m.now()
	expired := make(map[string]bool)

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.UpdatedAt()) > m.cfg.IdleTTL {
			delete(m.sessions, id)
			s.close()
			expired[id] = true
		}
	}
	m.mu.Unlock()

	idle, err := m.repo.ListIdleSessions(ctx, now.Add(-m.cfg.IdleTTL), 100)
	if err != nil {
		return len(expired), fmt.Errorf("failed to list idle sessions: %w", err)
	}

	m.mu.RLock()
	for _, state := range idle {
		// a session still in memory was used since it was last persisted
		if _, live := m.sessions[state.ID]; !live {
			expired[state.ID] = true
		}
	}
	m.mu.RUnlock()

	for id := range expired {
		if err := m.repo.DeleteSession(ctx, id); err != nil {
			slog.Error("failed to delete expired session", "session_id", id, "error", err)
			continue
		}
		slog.Info("session expired", "session_id", id)
	}

	return len(expired), nil
}

// Count returns the number of sessions held in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown persists every live session
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		if err := s.repo.SaveSession(ctx, s.State()); err != nil {
			slog.Error("failed to persist session on shutdown", "session_id", s.ID, "error", err)
		}
		s.close()
	}
}

func (m *Manager) build(state *models.SessionState, drafts map[string]models.CommentDraft) *Session {
	s := &Session{
		ID:        state.ID,
		CreatedAt: state.CreatedAt,
		Selection: catalog.NewSelection(),
		api:       m.api,
		repo:      m.repo,
		timeout:   m.cfg.RequestTimeout,
		notifier:  newNotifier(),
		now:       m.now,
		articles:  make(map[string]*article.View),
		updatedAt: state.UpdatedAt,
	}

	if state.Level != "" {
		s.Selection.Select(string(state.Level))
	}

	s.Browser = browse.New(m.api, state.Query,
		browse.WithTimeout(m.cfg.RequestTimeout),
		browse.WithOnChange(s.notifier.Notify),
	)

	s.Interactions = interaction.New(m.api, interaction.WithDraftStore(draftStore{repo: m.repo, sessionID: state.ID}))
	s.Interactions.AddSink(s.Browser)
	for articleID, d := range drafts {
		s.Interactions.RestoreDraft(articleID, d)
	}

	return s
}
