// Package view derives what a screen shows from the state of the components
// behind it. Every function here is pure.
package view

import (
	"github.com/terra-clan/ciel-content/internal/article"
	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/pagination"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/reconciler"
)

const (
	listingErrorMessage = "Impossible de charger les articles."
	articleErrorMessage = "Impossible de charger l'article."
)

// PageInfo drives the pagination controls
type PageInfo struct {
	Page      int  `json:"page"`
	PageCount int  `json:"page_count"`
	Total     int  `json:"total"`
	PageSize  int  `json:"page_size"`
	HasNext   bool `json:"has_next"`
	HasPrev   bool `json:"has_prev"`
}

// Listing is the article list screen
type Listing struct {
	Query        query.Descriptor        `json:"query"`
	Items        []models.ArticleSummary `json:"items"`
	IsLoading    bool                    `json:"is_loading"`
	IsRefreshing bool                    `json:"is_refreshing"`
	Error        string                  `json:"error,omitempty"`
	CanRetry     bool                    `json:"can_retry"`
	PageInfo     PageInfo                `json:"page_info"`
}

// Project builds the listing screen. While the first page of a query loads
// the list is empty and IsLoading is set; when a page is already shown it
// stays visible with IsRefreshing. A failed request shows only the error.
func Project(cache reconciler.Snapshot, pager pagination.State) Listing {
	l := Listing{
		Query:    cache.Target,
		Items:    []models.ArticleSummary{},
		PageInfo: projectPage(pager),
	}

	switch cache.Status {
	case reconciler.StatusLoading:
		if cache.Refreshing {
			l.IsRefreshing = true
			l.Items = items(cache.Page)
		} else {
			l.IsLoading = true
		}
	case reconciler.StatusLoaded:
		l.Items = items(cache.Page)
	case reconciler.StatusFailed:
		l.Error = listingErrorMessage
		l.CanRetry = true
	}

	return l
}

func items(p *models.ResultPage) []models.ArticleSummary {
	if p == nil || p.Items == nil {
		return []models.ArticleSummary{}
	}
	return p.Items
}

func projectPage(s pagination.State) PageInfo {
	return PageInfo{
		Page:      s.Page,
		PageCount: s.PageCount(),
		Total:     s.Total,
		PageSize:  s.PageSize,
		HasNext:   s.HasNext(),
		HasPrev:   s.HasPrev(),
	}
}

// ArticlePage is the detail screen of one article
type ArticlePage struct {
	ID           string                  `json:"id"`
	Article      *models.ArticleDetail   `json:"article,omitempty"`
	Comments     []models.Comment        `json:"comments"`
	Related      []models.ArticleSummary `json:"related"`
	Draft        models.CommentDraft     `json:"draft"`
	IsLoading    bool                    `json:"is_loading"`
	IsSubmitting bool                    `json:"is_submitting"`
	CanSubmit    bool                    `json:"can_submit"`
	Error        string                  `json:"error,omitempty"`
	CanRetry     bool                    `json:"can_retry"`
}

// ProjectArticle builds the detail screen. The comment form is enabled only
// when the draft is complete and no submission is in flight.
func ProjectArticle(snap article.Snapshot, draft models.CommentDraft, submitting bool) ArticlePage {
	p := ArticlePage{
		ID:           snap.ID,
		Comments:     []models.Comment{},
		Related:      []models.ArticleSummary{},
		Draft:        draft,
		IsSubmitting: submitting,
	}

	switch snap.Status {
	case article.StatusIdle, article.StatusLoading:
		p.IsLoading = true
	case article.StatusFailed:
		p.Error = articleErrorMessage
		p.CanRetry = true
	case article.StatusLoaded:
		p.Article = snap.Article
		if snap.Comments != nil {
			p.Comments = snap.Comments
		}
		if snap.Related != nil {
			p.Related = snap.Related
		}
		p.CanSubmit = !submitting && draft.Complete()
	}

	return p
}

// LevelTab is one entry of the level selector
type LevelTab struct {
	Level    models.Level `json:"level"`
	Label    string       `json:"label"`
	Selected bool         `json:"selected"`
}

// Catalog is the formations screen
type Catalog struct {
	Levels   []LevelTab        `json:"levels"`
	Selected *models.Formation `json:"selected,omitempty"`
}

// ProjectCatalog builds the formations screen for the selected level. Tabs
// follow ladder order whatever order formations arrive in.
func ProjectCatalog(formations []models.Formation, selected models.Level) Catalog {
	c := Catalog{Levels: make([]LevelTab, 0, len(models.Levels))}

	for _, level := range models.Levels {
		c.Levels = append(c.Levels, LevelTab{
			Level:    level,
			Label:    level.Label(),
			Selected: level == selected,
		})
	}

	for i := range formations {
		if formations[i].Level == selected {
			f := formations[i]
			c.Selected = &f
			break
		}
	}

	return c
}
