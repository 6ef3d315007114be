package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
)

// gatedFetcher blocks each request until the test releases its descriptor.
type gatedFetcher struct {
	mu    sync.Mutex
	gates map[string]chan result
	calls atomic.Int32
}

type result struct {
	page *models.ResultPage
	err  error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: make(map[string]chan result)}
}

func (f *gatedFetcher) gate(d query.Descriptor) chan result {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[d.Key()]
	if !ok {
		ch = make(chan result, 1)
		f.gates[d.Key()] = ch
	}
	return ch
}

func (f *gatedFetcher) ListArticles(ctx context.Context, d query.Descriptor) (*models.ResultPage, error) {
	f.calls.Add(1)
	select {
	case r := <-f.gate(d):
		return r.page, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *gatedFetcher) succeed(d query.Descriptor, total int, ids ...string) {
	items := make([]models.ArticleSummary, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.ArticleSummary{ID: id, Title: "article " + id})
	}
	f.gate(d) <- result{page: &models.ResultPage{Items: items, Total: total, Descriptor: d}}
}

func (f *gatedFetcher) fail(d query.Descriptor) {
	f.gate(d) <- result{err: errors.New("connection refused")}
}

type slot struct {
	v atomic.Pointer[query.Descriptor]
}

func (s *slot) set(d query.Descriptor) { s.v.Store(&d) }

func (s *slot) Current() query.Descriptor { return *s.v.Load() }

func wait(t *testing.T, p *Pending) (*models.ResultPage, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	page, err := p.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("timed out waiting for request to settle")
	}
	return page, err
}

func TestFetchDeduplicatesEqualDescriptors(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	d := query.Default(9)
	live.set(d)
	r := New(f, live)

	p1 := r.Fetch(context.Background(), d)
	p2 := r.Fetch(context.Background(), query.Build("", "Tous", query.SortRecent, 1, 9))

	f.succeed(d, 3, "a", "b", "c")
	wait(t, p1)
	wait(t, p2)

	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected a single upstream request, got %d", got)
	}
	if !p2.Shared() {
		t.Error("second fetch should have joined the first request")
	}
	snap := r.Snapshot()
	if snap.Status != StatusLoaded || len(snap.Page.Items) != 3 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestFetchDuringMergeStillSettles(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	d := query.Default(9)
	live.set(d)

	var (
		r      *Reconciler
		once   sync.Once
		second = make(chan *Pending, 1)
	)
	r = New(f, live, WithOnChange(func() {
		if r.Snapshot().Status != StatusLoaded {
			return
		}
		// refetch the same descriptor while the first response is merging
		once.Do(func() {
			go func() { second <- r.Fetch(context.Background(), d) }()
		})
	}))

	p1 := r.Fetch(context.Background(), d)
	f.succeed(d, 2, "a", "b")
	wait(t, p1)

	var p2 *Pending
	select {
	case p2 = <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("second fetch was never issued")
	}
	// a fresh upstream call is answered too; a joined one needs nothing
	f.succeed(d, 2, "a", "b")
	wait(t, p2)

	if snap := r.Snapshot(); snap.Status != StatusLoaded {
		t.Errorf("every request settled but status is %s", snap.Status)
	}
}

func TestOutOfOrderResponseIsDiscarded(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	base := query.Default(9)
	menaces := base.WithCategory("Menaces")
	architecture := base.WithCategory("Architecture")

	live.set(base)
	r := New(f, live)
	f.succeed(base, 1, "x")
	wait(t, r.Fetch(context.Background(), base))

	live.set(menaces)
	pm := r.Fetch(context.Background(), menaces)
	live.set(architecture)
	pa := r.Fetch(context.Background(), architecture)

	f.succeed(architecture, 2, "arch-1", "arch-2")
	if _, err := wait(t, pa); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.succeed(menaces, 1, "men-1")
	page, err := wait(t, pm)
	if err != nil || page != nil {
		t.Errorf("stale response should yield (nil, nil), got (%v, %v)", page, err)
	}
	if !pm.Stale() {
		t.Error("expected the late Menaces response to be stale")
	}

	snap := r.Snapshot()
	if snap.Page.Descriptor != architecture {
		t.Errorf("displayed page must answer the live query, got %s", snap.Page.Descriptor)
	}
	if snap.Page.Items[0].ID != "arch-1" {
		t.Errorf("unexpected items: %+v", snap.Page.Items)
	}
}

func TestStaleFailureDoesNotSurface(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	a := query.Default(9).WithSearch("ia")
	b := query.Default(9).WithSearch("phishing")

	live.set(a)
	r := New(f, live)
	pa := r.Fetch(context.Background(), a)
	live.set(b)
	pb := r.Fetch(context.Background(), b)

	f.fail(a)
	if _, err := wait(t, pa); err != nil {
		t.Errorf("stale failure should not be reported, got %v", err)
	}
	if r.Snapshot().Status != StatusLoading {
		t.Errorf("expected loading while b is in flight, got %s", r.Snapshot().Status)
	}

	f.succeed(b, 0)
	wait(t, pb)
	if r.Snapshot().Status != StatusLoaded {
		t.Errorf("expected loaded, got %s", r.Snapshot().Status)
	}
}

func TestRefreshKeepsPreviousPage(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	p1 := query.Default(9)
	p2 := p1.WithPage(2)

	live.set(p1)
	r := New(f, live)
	f.succeed(p1, 12, "a")
	wait(t, r.Fetch(context.Background(), p1))

	live.set(p2)
	pending := r.Fetch(context.Background(), p2)

	snap := r.Snapshot()
	if !snap.Refreshing {
		t.Error("expected refreshing while a previous page is displayed")
	}
	if snap.Page == nil || snap.Page.Items[0].ID != "a" {
		t.Error("previous page should stay visible during refresh")
	}

	f.succeed(p2, 12, "b")
	wait(t, pending)
	if snap := r.Snapshot(); snap.Refreshing || snap.Page.Items[0].ID != "b" {
		t.Errorf("unexpected snapshot after refresh: %+v", snap)
	}
}

func TestFailureThenRetry(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	d := query.Default(9)
	live.set(d)
	r := New(f, live)

	if _, err := r.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("expected ErrNothingToRetry before any failure, got %v", err)
	}

	f.fail(d)
	if _, err := wait(t, r.Fetch(context.Background(), d)); err == nil {
		t.Fatal("expected the failure to be reported")
	}
	snap := r.Snapshot()
	if snap.Status != StatusFailed || snap.Err == nil || snap.Target != d {
		t.Fatalf("unexpected snapshot after failure: %+v", snap)
	}

	pending, err := r.Retry(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	f.succeed(d, 1, "a")
	if _, err := wait(t, pending); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected 2 upstream requests, got %d", got)
	}
	if r.Snapshot().Status != StatusLoaded {
		t.Errorf("expected loaded after retry, got %s", r.Snapshot().Status)
	}
}

func TestCallerCancellationDoesNotAbortRequest(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	d := query.Default(9)
	live.set(d)
	r := New(f, live)

	ctx, cancel := context.WithCancel(context.Background())
	pending := r.Fetch(ctx, d)
	cancel()

	f.succeed(d, 1, "a")
	if _, err := wait(t, pending); err != nil {
		t.Fatalf("request should outlive its caller, got %v", err)
	}
}

func TestPatchArticle(t *testing.T) {
	f := newGatedFetcher()
	live := &slot{}
	d := query.Default(9)
	live.set(d)

	var changes atomic.Int32
	r := New(f, live, WithOnChange(func() { changes.Add(1) }))
	f.succeed(d, 2, "a", "b")
	wait(t, r.Fetch(context.Background(), d))

	before := changes.Load()
	if !r.PatchArticle("b", func(a *models.ArticleSummary) { a.LikeCount = 25 }) {
		t.Fatal("expected article b to be found")
	}
	if r.PatchArticle("zzz", func(a *models.ArticleSummary) { a.LikeCount = 1 }) {
		t.Error("unknown article should not be found")
	}
	if got := r.Snapshot().Page.Items[1].LikeCount; got != 25 {
		t.Errorf("expected 25 likes, got %d", got)
	}
	if changes.Load() != before+1 {
		t.Errorf("expected exactly one change notification for the patch")
	}
}
