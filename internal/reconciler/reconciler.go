// Package reconciler issues listing requests and merges their responses into
// the displayed result, discarding responses that no longer match the live
// query.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
)

// ErrNothingToRetry is returned by Retry when the last relevant request did
// not fail.
var ErrNothingToRetry = errors.New("no failed request to retry")

// Status of the live query
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// Fetcher loads one page of the listing
type Fetcher interface {
	ListArticles(ctx context.Context, d query.Descriptor) (*models.ResultPage, error)
}

// LiveQuery exposes the current query slot. The reconciler only reads it.
type LiveQuery interface {
	Current() query.Descriptor
}

// LiveQueryFunc adapts a function to LiveQuery
type LiveQueryFunc func() query.Descriptor

func (f LiveQueryFunc) Current() query.Descriptor { return f() }

// Snapshot is a copy of the reconciler's state
type Snapshot struct {
	Status Status
	// Page is the latest relevant page that loaded successfully. While a new
	// request is loading it still holds the previous result.
	Page *models.ResultPage
	Err  error
	// Target is the descriptor being loaded, or the one that last settled
	Target     query.Descriptor
	Refreshing bool
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithTimeout bounds each upstream request
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithOnChange registers a callback run after every state transition. It is
// called without internal locks held and must not block.
func WithOnChange(fn func()) Option {
	return func(r *Reconciler) {
		r.onChange = fn
	}
}

// Reconciler is safe for concurrent use
type Reconciler struct {
	fetcher  Fetcher
	live     LiveQuery
	timeout  time.Duration
	onChange func()

	group singleflight.Group

	mu     sync.Mutex
	status Status
	page   *models.ResultPage
	err    error
	target query.Descriptor
}

// New creates a reconciler reading the live descriptor from live
func New(fetcher Fetcher, live LiveQuery, opts ...Option) *Reconciler {
	r := &Reconciler{
		fetcher: fetcher,
		live:    live,
		timeout: 10 * time.Second,
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch requests the page for d. If a request for an equal descriptor is
// already in flight, the returned handle shares it and no second request is
// issued.
//
// The request is not tied to ctx's cancellation: it runs until the upstream
// answers or the request timeout elapses, and its response is merged only
// if d is still the live descriptor at that moment.
func (r *Reconciler) Fetch(ctx context.Context, d query.Descriptor) *Pending {
	r.mu.Lock()
	if d == r.live.Current() {
		r.status = StatusLoading
		r.err = nil
		r.target = d
	}
	r.mu.Unlock()
	r.changed()

	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(d.Key(), func() (any, error) {
		reqCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		return r.fetcher.ListArticles(reqCtx, d)
	})

	// Every handle settles its own outcome, so a Fetch that marked d as
	// loading is always followed by a merge even when it joined a call
	// that had already returned.
	return newPending(d, ch, r.settle)
}

// Retry re-issues the descriptor whose request failed
func (r *Reconciler) Retry(ctx context.Context) (*Pending, error) {
	r.mu.Lock()
	if r.status != StatusFailed {
		r.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	d := r.target
	r.mu.Unlock()

	slog.Info("retrying listing request", "descriptor", d.Key())
	return r.Fetch(ctx, d), nil
}

// Snapshot returns a copy of the current state
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		Status:     r.status,
		Page:       r.page.Clone(),
		Err:        r.err,
		Target:     r.target,
		Refreshing: r.status == StatusLoading && r.page != nil,
	}
}

// PatchArticle applies fn to the cached listing entry with the given id and
// reports whether one was found.
func (r *Reconciler) PatchArticle(id string, fn func(*models.ArticleSummary)) bool {
	r.mu.Lock()
	found := false
	if r.page != nil {
		for i := range r.page.Items {
			if r.page.Items[i].ID == id {
				fn(&r.page.Items[i])
				found = true
			}
		}
	}
	r.mu.Unlock()

	if found {
		r.changed()
	}
	return found
}

// settle merges a response if its descriptor is still live and reports
// whether it was discarded as stale. Merging the same outcome twice is
// harmless.
func (r *Reconciler) settle(d query.Descriptor, page *models.ResultPage, err error) bool {
	r.mu.Lock()
	live := r.live.Current()
	if d != live {
		r.mu.Unlock()
		slog.Debug("discarding stale listing response",
			"descriptor", d.Key(),
			"live", live.Key(),
			"failed", err != nil,
		)
		return true
	}

	r.target = d
	if err != nil {
		r.status = StatusFailed
		r.err = err
	} else {
		r.status = StatusLoaded
		r.err = nil
		r.page = page.Clone()
	}
	r.mu.Unlock()

	if err != nil {
		slog.Warn("listing request failed", "descriptor", d.Key(), "error", err)
	} else {
		slog.Debug("listing loaded", "descriptor", d.Key(), "items", len(page.Items), "total", page.Total)
	}

	r.changed()
	return false
}

func (r *Reconciler) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}
