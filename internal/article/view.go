// Package article loads and holds the detail page of one article: its body,
// its comment thread and a few related articles.
package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
)

// ErrNothingToRetry is returned by Retry when the last load did not fail
var ErrNothingToRetry = errors.New("article load did not fail")

// DefaultRelatedLimit is how many related articles are shown
const DefaultRelatedLimit = 3

// Status of a detail view
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// API is the part of the upstream contract the view reads
type API interface {
	GetArticle(ctx context.Context, id string) (*models.ArticleDetail, error)
	ListComments(ctx context.Context, articleID string) ([]models.Comment, error)
	ListArticles(ctx context.Context, d query.Descriptor) (*models.ResultPage, error)
}

// Snapshot is a copy of the view's state
type Snapshot struct {
	ID       string
	Status   Status
	Article  *models.ArticleDetail
	Comments []models.Comment
	Related  []models.ArticleSummary
	Err      error
}

// Option configures a View
type Option func(*View)

// WithRelatedLimit sets how many related articles are kept
func WithRelatedLimit(n int) Option {
	return func(v *View) {
		if n >= 0 {
			v.relatedLimit = n
		}
	}
}

// WithTimeout bounds a whole load
func WithTimeout(d time.Duration) Option {
	return func(v *View) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithOnChange registers a callback run after every state change. It must
// not block.
func WithOnChange(fn func()) Option {
	return func(v *View) {
		v.onChange = fn
	}
}

// View is safe for concurrent use. It implements interaction.CountSink so
// likes and new comments show up without a reload.
type View struct {
	id           string
	api          API
	relatedLimit int
	timeout      time.Duration
	onChange     func()

	mu       sync.Mutex
	status   Status
	detail   *models.ArticleDetail
	comments []models.Comment
	related  []models.ArticleSummary
	err      error
	inflight chan struct{}
}

// NewView creates an unloaded view of article id
func NewView(id string, api API, opts ...Option) *View {
	v := &View{
		id:           id,
		api:          api,
		relatedLimit: DefaultRelatedLimit,
		timeout:      15 * time.Second,
		status:       StatusIdle,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load fetches the article the first time it is called. Later calls return
// the outcome of the first load, or wait for a load already in progress.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.inflight != nil:
		ch := v.inflight
		v.mu.Unlock()
		return v.await(ctx, ch)
	case v.status == StatusLoaded:
		v.mu.Unlock()
		return nil
	case v.status == StatusFailed:
		err := v.err
		v.mu.Unlock()
		return err
	}
	ch := v.begin()
	v.mu.Unlock()

	go v.load(ctx, ch)
	return v.await(ctx, ch)
}

// Retry reloads a view whose last load failed
func (v *View) Retry(ctx context.Context) error {
	v.mu.Lock()
	if v.status != StatusFailed {
		v.mu.Unlock()
		return ErrNothingToRetry
	}
	ch := v.begin()
	v.mu.Unlock()

	slog.Info("retrying article load", "article_id", v.id)
	go v.load(ctx, ch)
	return v.await(ctx, ch)
}

// Snapshot returns a copy of the current state
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	var detail *models.ArticleDetail
	if v.detail != nil {
		cp := *v.detail
		detail = &cp
	}
	return Snapshot{
		ID:       v.id,
		Status:   v.status,
		Article:  detail,
		Comments: append([]models.Comment(nil), v.comments...),
		Related:  append([]models.ArticleSummary(nil), v.related...),
		Err:      v.err,
	}
}

// SetArticleLikes applies a confirmed like count to the article or to a
// related entry.
func (v *View) SetArticleLikes(articleID string, likes int) {
	v.mu.Lock()
	changed := false
	if v.detail != nil && v.detail.ID == articleID {
		v.detail.LikeCount = likes
		changed = true
	}
	for i := range v.related {
		if v.related[i].ID == articleID {
			v.related[i].LikeCount = likes
			changed = true
		}
	}
	v.mu.Unlock()

	if changed {
		v.changed()
	}
}

// SetCommentLikes applies a confirmed like count to a comment of the thread
func (v *View) SetCommentLikes(commentID string, likes int) {
	v.mu.Lock()
	changed := false
	for i := range v.comments {
		if v.comments[i].ID == commentID {
			v.comments[i].LikeCount = likes
			changed = true
		}
	}
	v.mu.Unlock()

	if changed {
		v.changed()
	}
}

// SetThread replaces the thread with one re-read from the server
func (v *View) SetThread(articleID string, comments []models.Comment) {
	if articleID != v.id {
		return
	}

	v.mu.Lock()
	v.comments = append([]models.Comment(nil), comments...)
	if v.detail != nil {
		v.detail.CommentCount = len(comments)
	}
	v.mu.Unlock()

	v.changed()
}

// begin must be called with v.mu held
func (v *View) begin() chan struct{} {
	ch := make(chan struct{})
	v.inflight = ch
	v.status = StatusLoading
	v.err = nil
	return ch
}

func (v *View) await(ctx context.Context, ch chan struct{}) error {
	select {
	case <-ch:
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *View) load(ctx context.Context, done chan struct{}) {
	v.changed()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
	defer cancel()

	var (
		detail   *models.ArticleDetail
		comments []models.Comment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := v.api.GetArticle(gctx, v.id)
		if err != nil {
			return fmt.Errorf("failed to load article %s: %w", v.id, err)
		}
		detail = d
		return nil
	})
	g.Go(func() error {
		c, err := v.api.ListComments(gctx, v.id)
		if err != nil {
			return fmt.Errorf("failed to load comments of %s: %w", v.id, err)
		}
		comments = c
		return nil
	})

	err := g.Wait()

	var related []models.ArticleSummary
	if err == nil {
		related = v.loadRelated(ctx, detail)
	}

	v.mu.Lock()
	if err != nil {
		v.status = StatusFailed
		v.err = err
	} else {
		v.status = StatusLoaded
		v.detail = detail
		v.comments = comments
		v.related = related
	}
	v.inflight = nil
	close(done)
	v.mu.Unlock()

	if err != nil {
		slog.Warn("article load failed", "article_id", v.id, "error", err)
	} else {
		slog.Debug("article loaded", "article_id", v.id, "comments", len(comments), "related", len(related))
	}
	v.changed()
}

// loadRelated returns other recent articles of the same category. Failure
// leaves the list empty.
func (v *View) loadRelated(ctx context.Context, detail *models.ArticleDetail) []models.ArticleSummary {
	if v.relatedLimit == 0 || detail.Category == "" {
		return nil
	}

	d := query.Build("", detail.Category, query.SortRecent, 1, v.relatedLimit+1)
	page, err := v.api.ListArticles(ctx, d)
	if err != nil {
		slog.Warn("failed to load related articles", "article_id", v.id, "category", detail.Category, "error", err)
		return nil
	}

	related := make([]models.ArticleSummary, 0, v.relatedLimit)
	for _, a := range page.Items {
		if a.ID == v.id {
			continue
		}
		related = append(related, a)
		if len(related) == v.relatedLimit {
			break
		}
	}
	return related
}

func (v *View) changed() {
	if v.onChange != nil {
		v.onChange()
	}
}
