// Package browse owns the live listing query of one visitor and keeps the
// query, the pagination state and the result cache consistent.
package browse

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/pagination"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/reconciler"
	"github.com/terra-clan/ciel-content/internal/view"
)

// Option configures a Browser
type Option func(*options)

type options struct {
	timeout  time.Duration
	onChange func()
}

// WithTimeout bounds each listing request
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithOnChange registers a callback run whenever the listing may have
// changed. It must not block.
func WithOnChange(fn func()) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// Browser is safe for concurrent use. It is the only writer of the live
// descriptor; the reconciler reads it to discard stale responses.
type Browser struct {
	live atomic.Pointer[query.Descriptor]
	rec  *reconciler.Reconciler

	mu    sync.Mutex
	pager *pagination.Machine
}

// New creates a browser positioned on initial. Nothing is fetched until Load.
func New(fetcher reconciler.Fetcher, initial query.Descriptor, opts ...Option) *Browser {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	initial = query.Build(initial.Search, initial.Category, initial.Sort, initial.Page, initial.PageSize)

	b := &Browser{pager: pagination.New(initial.PageSize)}
	b.pager.Restore(initial.Page)
	b.live.Store(&initial)

	recOpts := []reconciler.Option{reconciler.WithTimeout(o.timeout)}
	if o.onChange != nil {
		recOpts = append(recOpts, reconciler.WithOnChange(o.onChange))
	}
	b.rec = reconciler.New(fetcher, reconciler.LiveQueryFunc(b.Query), recOpts...)

	return b
}

// Query returns the live descriptor
func (b *Browser) Query() query.Descriptor {
	return *b.live.Load()
}

// Load fetches the live descriptor
func (b *Browser) Load(ctx context.Context) *reconciler.Pending {
	return b.rec.Fetch(ctx, b.Query())
}

// SetSearch changes the search text. It reports false and fetches nothing
// when the normalized text is unchanged.
func (b *Browser) SetSearch(ctx context.Context, search string) (*reconciler.Pending, bool) {
	return b.Update(ctx, func(d query.Descriptor) query.Descriptor { return d.WithSearch(search) })
}

// SetCategory changes the category filter
func (b *Browser) SetCategory(ctx context.Context, category string) (*reconciler.Pending, bool) {
	return b.Update(ctx, func(d query.Descriptor) query.Descriptor { return d.WithCategory(category) })
}

// SetSort changes the ordering
func (b *Browser) SetSort(ctx context.Context, sort query.SortKey) (*reconciler.Pending, bool) {
	return b.Update(ctx, func(d query.Descriptor) query.Descriptor { return d.WithSort(sort) })
}

// Update applies fn to the live descriptor and fetches the result if it
// changed. A change of search, category or sort sends pagination back to
// page 1 and forgets the previous total.
func (b *Browser) Update(ctx context.Context, fn func(query.Descriptor) query.Descriptor) (*reconciler.Pending, bool) {
	b.mu.Lock()
	cur := b.Query()
	next := fn(cur)
	if next == cur {
		b.mu.Unlock()
		return nil, false
	}

	if !next.SameShape(cur) {
		b.pager.Reset()
		b.pager.SetTotal(0)
		next = next.WithPage(1)
	} else {
		b.pager.Restore(next.Page)
	}
	b.live.Store(&next)
	b.mu.Unlock()

	return b.rec.Fetch(ctx, next), true
}

// Next moves to the following page. It is a no-op on the last page.
func (b *Browser) Next(ctx context.Context) (*reconciler.Pending, bool) {
	return b.move(ctx, (*pagination.Machine).Next)
}

// Prev moves to the preceding page. It is a no-op on page 1.
func (b *Browser) Prev(ctx context.Context) (*reconciler.Pending, bool) {
	return b.move(ctx, (*pagination.Machine).Prev)
}

// GoTo jumps to page n if it exists
func (b *Browser) GoTo(ctx context.Context, n int) (*reconciler.Pending, bool) {
	return b.move(ctx, func(m *pagination.Machine) bool { return m.GoTo(n) })
}

func (b *Browser) move(ctx context.Context, step func(*pagination.Machine) bool) (*reconciler.Pending, bool) {
	b.mu.Lock()
	b.syncTotal()
	if !step(b.pager) {
		b.mu.Unlock()
		return nil, false
	}
	next := b.Query().WithPage(b.pager.State().Page)
	b.live.Store(&next)
	b.mu.Unlock()

	return b.rec.Fetch(ctx, next), true
}

// Retry re-issues the failed request
func (b *Browser) Retry(ctx context.Context) (*reconciler.Pending, error) {
	return b.rec.Retry(ctx)
}

// Snapshot projects the listing screen
func (b *Browser) Snapshot() view.Listing {
	b.mu.Lock()
	b.syncTotal()
	state := b.pager.State()
	b.mu.Unlock()

	l := view.Project(b.rec.Snapshot(), state)
	l.Query = b.Query()
	return l
}

// syncTotal adopts the total of the displayed page when it answers the live
// query shape. Must be called with b.mu held.
func (b *Browser) syncTotal() {
	snap := b.rec.Snapshot()
	if snap.Page != nil && snap.Page.Descriptor.SameShape(b.Query()) {
		b.pager.SetTotal(snap.Page.Total)
	}
}

// SetArticleLikes patches a listed article's like count
func (b *Browser) SetArticleLikes(articleID string, likes int) {
	b.rec.PatchArticle(articleID, func(a *models.ArticleSummary) {
		a.LikeCount = likes
	})
}

// SetCommentLikes is a no-op: the listing shows no comments
func (b *Browser) SetCommentLikes(string, int) {}

// SetThread patches a listed article's comment count
func (b *Browser) SetThread(articleID string, comments []models.Comment) {
	b.rec.PatchArticle(articleID, func(a *models.ArticleSummary) {
		a.CommentCount = len(comments)
	})
}
