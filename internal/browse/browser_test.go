package browse

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/reconciler"
	"github.com/terra-clan/ciel-content/pkg/client"
)

// catalogFetcher serves a fixed number of articles per category
type catalogFetcher struct {
	mu       sync.Mutex
	totals   map[string]int
	requests []query.Descriptor
	fail     bool
}

func (f *catalogFetcher) ListArticles(ctx context.Context, d query.Descriptor) (*models.ResultPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, d)
	if f.fail {
		return nil, fmt.Errorf("%w: HTTP 500", client.ErrRequestFailed)
	}

	total := f.totals[d.Category]
	var items []models.ArticleSummary
	for i := (d.Page - 1) * d.PageSize; i < total && i < d.Page*d.PageSize; i++ {
		items = append(items, models.ArticleSummary{ID: fmt.Sprintf("%s-%d", d.Category, i), Category: d.Category, LikeCount: 1})
	}
	return &models.ResultPage{Items: items, Total: total, Descriptor: d}, nil
}

func (f *catalogFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func settle(t *testing.T, p *reconciler.Pending) {
	t.Helper()
	if p == nil {
		t.Fatal("expected a request to be issued")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.Wait(ctx); err != nil && ctx.Err() != nil {
		t.Fatal("timed out waiting for listing")
	}
}

func TestFilterChangeResetsPage(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 30, "Menaces": 12}}
	b := New(f, query.Default(9))
	settle(t, b.Load(context.Background()))

	p, ok := b.Next(context.Background())
	if !ok {
		t.Fatal("expected next page to exist")
	}
	settle(t, p)
	p, _ = b.Next(context.Background())
	settle(t, p)
	if got := b.Query().Page; got != 3 {
		t.Fatalf("expected page 3, got %d", got)
	}

	p, changed := b.SetCategory(context.Background(), "Menaces")
	if !changed {
		t.Fatal("expected category change")
	}
	if got := b.Query().Page; got != 1 {
		t.Errorf("category change must reset page, got %d", got)
	}
	settle(t, p)

	snap := b.Snapshot()
	if snap.PageInfo.Page != 1 || snap.PageInfo.Total != 12 || snap.PageInfo.PageCount != 2 {
		t.Errorf("unexpected page info: %+v", snap.PageInfo)
	}
	if snap.Query.Category != "Menaces" {
		t.Errorf("unexpected query: %+v", snap.Query)
	}
}

func TestUnchangedInputIssuesNoRequest(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 5}}
	b := New(f, query.Build("ia", "", query.SortRecent, 1, 9))
	settle(t, b.Load(context.Background()))

	if _, changed := b.SetSearch(context.Background(), "  ia "); changed {
		t.Error("same search after trimming must be a no-op")
	}
	if _, changed := b.SetCategory(context.Background(), query.AllCategories); changed {
		t.Error("selecting all categories when no filter is set must be a no-op")
	}
	if got := f.count(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestSortChangeResetsPage(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 30}}
	b := New(f, query.Build("", "", query.SortRecent, 2, 9))
	settle(t, b.Load(context.Background()))

	p, changed := b.SetSort(context.Background(), query.SortPopular)
	if !changed {
		t.Fatal("expected sort change")
	}
	settle(t, p)
	if d := b.Query(); d.Page != 1 || d.Sort != query.SortPopular {
		t.Errorf("expected page 1 sorted by popularity, got %+v", d)
	}

	if _, changed := b.SetSort(context.Background(), query.SortPopular); changed {
		t.Error("same sort must be a no-op")
	}
}

func TestNextIsNoOpOnLastPage(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 9}}
	b := New(f, query.Default(9))
	settle(t, b.Load(context.Background()))

	if _, ok := b.Next(context.Background()); ok {
		t.Error("next must be a no-op when total fits on one page")
	}
	if _, ok := b.Prev(context.Background()); ok {
		t.Error("prev must be a no-op on page 1")
	}
	if got := f.count(); got != 1 {
		t.Errorf("expected no further requests, got %d", got)
	}

	snap := b.Snapshot()
	if snap.PageInfo.HasNext || snap.PageInfo.HasPrev {
		t.Errorf("unexpected page info: %+v", snap.PageInfo)
	}
}

func TestNextBeforeTotalKnown(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 100}}
	b := New(f, query.Default(9))

	if _, ok := b.Next(context.Background()); ok {
		t.Error("next must wait for a total")
	}
}

func TestGoTo(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 40}}
	b := New(f, query.Default(10))
	settle(t, b.Load(context.Background()))

	p, ok := b.GoTo(context.Background(), 4)
	if !ok {
		t.Fatal("expected page 4 of 4 to be reachable")
	}
	settle(t, p)
	if _, ok := b.GoTo(context.Background(), 5); ok {
		t.Error("page 5 of 4 must be rejected")
	}

	snap := b.Snapshot()
	if len(snap.Items) != 10 || snap.Items[0].ID != "-30" {
		t.Errorf("unexpected items on page 4: %+v", snap.Items)
	}
}

func TestRestoredPage(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 40}}
	b := New(f, query.Build("", "", query.SortPopular, 3, 10))
	settle(t, b.Load(context.Background()))

	snap := b.Snapshot()
	if snap.PageInfo.Page != 3 || !snap.PageInfo.HasNext || !snap.PageInfo.HasPrev {
		t.Errorf("unexpected page info: %+v", snap.PageInfo)
	}
}

func TestRetryAfterFailure(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 3}, fail: true}
	b := New(f, query.Default(9))
	settle(t, b.Load(context.Background()))

	snap := b.Snapshot()
	if snap.Error == "" || len(snap.Items) != 0 {
		t.Fatalf("expected failed listing, got %+v", snap)
	}

	f.mu.Lock()
	f.fail = false
	f.mu.Unlock()

	p, err := b.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	settle(t, p)
	if snap := b.Snapshot(); snap.Error != "" || len(snap.Items) != 3 {
		t.Errorf("unexpected listing after retry: %+v", snap)
	}
}

func TestCountSinkPatchesListing(t *testing.T) {
	f := &catalogFetcher{totals: map[string]int{"": 2}}
	b := New(f, query.Default(9))
	settle(t, b.Load(context.Background()))

	b.SetArticleLikes("-1", 25)
	b.SetThread("-0", []models.Comment{{ID: "c1"}, {ID: "c2"}})

	snap := b.Snapshot()
	if snap.Items[1].LikeCount != 25 {
		t.Errorf("expected 25 likes, got %d", snap.Items[1].LikeCount)
	}
	if snap.Items[0].CommentCount != 2 {
		t.Errorf("expected 2 comments, got %d", snap.Items[0].CommentCount)
	}
}
