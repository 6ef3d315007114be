package view

import (
	"errors"
	"testing"

	"github.com/terra-clan/ciel-content/internal/article"
	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/pagination"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/reconciler"
)

func page(ids ...string) *models.ResultPage {
	p := &models.ResultPage{Total: 20, Descriptor: query.Default(9)}
	for _, id := range ids {
		p.Items = append(p.Items, models.ArticleSummary{ID: id})
	}
	return p
}

func TestProjectListing(t *testing.T) {
	pager := pagination.State{Page: 2, Total: 20, PageSize: 9}

	cases := []struct {
		name           string
		snap           reconciler.Snapshot
		wantItems      int
		wantLoading    bool
		wantRefreshing bool
		wantError      bool
	}{
		{"idle", reconciler.Snapshot{Status: reconciler.StatusIdle}, 0, false, false, false},
		{"first load", reconciler.Snapshot{Status: reconciler.StatusLoading}, 0, true, false, false},
		{"refresh", reconciler.Snapshot{Status: reconciler.StatusLoading, Page: page("a", "b"), Refreshing: true}, 2, false, true, false},
		{"loaded", reconciler.Snapshot{Status: reconciler.StatusLoaded, Page: page("a", "b", "c")}, 3, false, false, false},
		{"failed", reconciler.Snapshot{Status: reconciler.StatusFailed, Page: page("a"), Err: errors.New("boom")}, 0, false, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := Project(tc.snap, pager)
			if len(l.Items) != tc.wantItems {
				t.Errorf("items: got %d, want %d", len(l.Items), tc.wantItems)
			}
			if l.IsLoading != tc.wantLoading || l.IsRefreshing != tc.wantRefreshing {
				t.Errorf("flags: loading=%v refreshing=%v", l.IsLoading, l.IsRefreshing)
			}
			if (l.Error != "") != tc.wantError || l.CanRetry != tc.wantError {
				t.Errorf("error: %q can_retry=%v", l.Error, l.CanRetry)
			}
			if l.Items == nil {
				t.Error("items must never be nil")
			}
		})
	}
}

func TestProjectPageInfo(t *testing.T) {
	l := Project(reconciler.Snapshot{}, pagination.State{Page: 3, Total: 19, PageSize: 9})
	want := PageInfo{Page: 3, PageCount: 3, Total: 19, PageSize: 9, HasNext: false, HasPrev: true}
	if l.PageInfo != want {
		t.Errorf("got %+v, want %+v", l.PageInfo, want)
	}
}

func TestProjectArticle(t *testing.T) {
	loaded := article.Snapshot{
		ID:      "a1",
		Status:  article.StatusLoaded,
		Article: &models.ArticleDetail{ArticleSummary: models.ArticleSummary{ID: "a1"}},
	}
	draft := models.CommentDraft{Author: "Alice", Content: "Bonjour"}

	p := ProjectArticle(loaded, draft, false)
	if p.Article == nil || !p.CanSubmit || p.IsLoading {
		t.Errorf("unexpected loaded page: %+v", p)
	}
	if p.Comments == nil || p.Related == nil {
		t.Error("lists must never be nil")
	}

	if p := ProjectArticle(loaded, draft, true); p.CanSubmit || !p.IsSubmitting {
		t.Error("submit must be disabled while a submission is in flight")
	}
	if p := ProjectArticle(loaded, models.CommentDraft{Author: "Alice"}, false); p.CanSubmit {
		t.Error("submit must be disabled for an incomplete draft")
	}

	failed := ProjectArticle(article.Snapshot{ID: "a1", Status: article.StatusFailed}, draft, false)
	if failed.Error == "" || !failed.CanRetry || failed.Article != nil {
		t.Errorf("unexpected failed page: %+v", failed)
	}
	if failed.Draft != draft {
		t.Error("draft must survive a failed load")
	}
}

func TestProjectCatalog(t *testing.T) {
	formations := []models.Formation{
		{ID: "3", Level: models.LevelMaster},
		{ID: "1", Level: models.LevelBacPro},
		{ID: "2", Level: models.LevelBTS},
	}

	c := ProjectCatalog(formations, models.LevelBTS)
	if c.Selected == nil || c.Selected.ID != "2" {
		t.Fatalf("expected BTS formation selected, got %+v", c.Selected)
	}
	if len(c.Levels) != 3 || c.Levels[0].Level != models.LevelBacPro || !c.Levels[1].Selected {
		t.Errorf("unexpected tabs: %+v", c.Levels)
	}

	if c := ProjectCatalog(nil, models.LevelMaster); c.Selected != nil {
		t.Error("no formation should be selected without data")
	}
}
