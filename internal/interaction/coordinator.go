// Package interaction handles likes and comment submission: the operations
// that mutate a single article or comment on the upstream API.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/terra-clan/ciel-content/internal/models"
)

var (
	// ErrValidationFailed is returned when the author or content of a comment
	// is empty after trimming. No request is made.
	ErrValidationFailed = errors.New("author and content are required")

	// ErrSubmissionInFlight is returned when a comment for the same article is
	// already being submitted.
	ErrSubmissionInFlight = errors.New("a comment submission is already in progress")
)

// API is the part of the upstream contract the coordinator needs
type API interface {
	LikeArticle(ctx context.Context, id string) (int, error)
	LikeComment(ctx context.Context, id string) (int, error)
	CreateComment(ctx context.Context, articleID string, draft models.CommentDraft) (*models.Comment, error)
	ListComments(ctx context.Context, articleID string) ([]models.Comment, error)
}

// CountSink receives server-confirmed counters and threads. The listing cache
// and open article views are sinks. Sinks are called with the coordinator's
// lock held and must not call back into it.
type CountSink interface {
	SetArticleLikes(articleID string, likes int)
	SetCommentLikes(commentID string, likes int)
	SetThread(articleID string, comments []models.Comment)
}

// DraftStore persists comment drafts so they survive a restart
type DraftStore interface {
	SaveDraft(ctx context.Context, articleID string, draft models.CommentDraft) error
	DeleteDraft(ctx context.Context, articleID string) error
}

type entityKind int

const (
	kindArticle entityKind = iota
	kindComment
)

type entityKey struct {
	kind entityKind
	id   string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithDraftStore persists drafts through store
func WithDraftStore(store DraftStore) Option {
	return func(c *Coordinator) {
		c.drafts = store
	}
}

// Coordinator is safe for concurrent use
type Coordinator struct {
	api    API
	drafts DraftStore

	mu         sync.Mutex
	sinks      []CountSink
	draft      map[string]models.CommentDraft
	submitting map[string]bool
	issued     map[entityKey]uint64
	applied    map[entityKey]uint64
}

// New creates a coordinator talking to api
func New(api API, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:        api,
		draft:      make(map[string]models.CommentDraft),
		submitting: make(map[string]bool),
		issued:     make(map[entityKey]uint64),
		applied:    make(map[entityKey]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddSink registers s for count updates
func (c *Coordinator) AddSink(s CountSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// RemoveSink unregisters s
func (c *Coordinator) RemoveSink(s CountSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.sinks {
		if existing == s {
			c.sinks = append(c.sinks[:i], c.sinks[i+1:]...)
			return
		}
	}
}

// LikeArticle registers a like and returns the server's count. On failure the
// displayed count is left unchanged.
func (c *Coordinator) LikeArticle(ctx context.Context, id string) (int, error) {
	return c.like(ctx, entityKey{kind: kindArticle, id: id}, c.api.LikeArticle)
}

// LikeComment registers a like on a comment and returns the server's count
func (c *Coordinator) LikeComment(ctx context.Context, id string) (int, error) {
	return c.like(ctx, entityKey{kind: kindComment, id: id}, c.api.LikeComment)
}

func (c *Coordinator) like(ctx context.Context, key entityKey, call func(context.Context, string) (int, error)) (int, error) {
	c.mu.Lock()
	c.issued[key]++
	seq := c.issued[key]
	c.mu.Unlock()

	likes, err := call(ctx, key.id)
	if err != nil {
		slog.Warn("like failed", "kind", key.kind.String(), "id", key.id, "error", err)
		return 0, fmt.Errorf("failed to like %s %s: %w", key.kind, key.id, err)
	}

	c.mu.Lock()
	if seq < c.applied[key] {
		c.mu.Unlock()
		slog.Debug("dropping out-of-order like response", "kind", key.kind.String(), "id", key.id, "likes", likes)
		return likes, nil
	}
	c.applied[key] = seq
	// Sinks are notified under the lock so that two accepted responses
	// reach them in issue order.
	for _, s := range c.sinks {
		if key.kind == kindArticle {
			s.SetArticleLikes(key.id, likes)
		} else {
			s.SetCommentLikes(key.id, likes)
		}
	}
	c.mu.Unlock()

	return likes, nil
}

// SetDraft records what the visitor typed for an article
func (c *Coordinator) SetDraft(ctx context.Context, articleID string, draft models.CommentDraft) {
	c.mu.Lock()
	if draft.IsZero() {
		delete(c.draft, articleID)
	} else {
		c.draft[articleID] = draft
	}
	c.mu.Unlock()

	c.persistDraft(ctx, articleID, draft)
}

// RestoreDraft sets a draft loaded from storage without persisting it again
func (c *Coordinator) RestoreDraft(articleID string, draft models.CommentDraft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !draft.IsZero() {
		c.draft[articleID] = draft
	}
}

// Draft returns the current draft for an article
func (c *Coordinator) Draft(articleID string) models.CommentDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft[articleID]
}

// Submitting reports whether a comment for the article is in flight
func (c *Coordinator) Submitting(articleID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting[articleID]
}

// Submit posts a comment. The draft is recorded before validation so that it
// survives a failure or a rejection while another submission is in flight.
// On success the thread is re-read from the server and the new thread is
// returned. The draft is cleared only if it still holds the posted text.
func (c *Coordinator) Submit(ctx context.Context, articleID, author, content string) ([]models.Comment, error) {
	draft := models.CommentDraft{Author: author, Content: content}

	c.mu.Lock()
	c.draft[articleID] = draft
	if c.submitting[articleID] {
		c.mu.Unlock()
		// the blocked text becomes the draft and outlives the submission
		// already in flight
		c.persistDraft(ctx, articleID, draft)
		return nil, ErrSubmissionInFlight
	}
	if !draft.Complete() {
		c.mu.Unlock()
		c.persistDraft(ctx, articleID, draft)
		return nil, ErrValidationFailed
	}
	c.submitting[articleID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.submitting, articleID)
		c.mu.Unlock()
	}()

	c.persistDraft(ctx, articleID, draft)

	if _, err := c.api.CreateComment(ctx, articleID, draft.Trimmed()); err != nil {
		slog.Warn("comment submission failed", "article_id", articleID, "error", err)
		return nil, fmt.Errorf("failed to submit comment: %w", err)
	}

	// The comment exists upstream from here on, so the draft goes even if
	// the thread cannot be re-read.
	c.clearDraft(ctx, articleID, draft)

	comments, err := c.api.ListComments(ctx, articleID)
	if err != nil {
		slog.Warn("failed to reload comments after submission", "article_id", articleID, "error", err)
		return nil, fmt.Errorf("comment posted but failed to reload thread: %w", err)
	}

	slog.Info("comment submitted", "article_id", articleID, "comments", len(comments))

	c.mu.Lock()
	for _, s := range c.sinks {
		s.SetThread(articleID, comments)
	}
	c.mu.Unlock()

	return comments, nil
}

// clearDraft drops the draft of a posted comment unless the visitor typed
// something else while it was in flight.
func (c *Coordinator) clearDraft(ctx context.Context, articleID string, submitted models.CommentDraft) {
	c.mu.Lock()
	if current := c.draft[articleID]; current != submitted {
		c.mu.Unlock()
		// the store may have been written by this submission after the
		// newer draft reached it
		c.persistDraft(ctx, articleID, current)
		return
	}
	delete(c.draft, articleID)
	c.mu.Unlock()

	if c.drafts == nil {
		return
	}
	if err := c.drafts.DeleteDraft(ctx, articleID); err != nil {
		slog.Warn("failed to delete draft", "article_id", articleID, "error", err)
	}
}

func (c *Coordinator) persistDraft(ctx context.Context, articleID string, draft models.CommentDraft) {
	if c.drafts == nil {
		return
	}

	var err error
	if draft.IsZero() {
		err = c.drafts.DeleteDraft(ctx, articleID)
	} else {
		err = c.drafts.SaveDraft(ctx, articleID, draft)
	}
	if err != nil {
		slog.Warn("failed to persist draft", "article_id", articleID, "error", err)
	}
}

func (k entityKind) String() string {
	if k == kindComment {
		return "comment"
	}
	return "article"
}
