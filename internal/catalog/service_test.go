package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/refcache"
	"github.com/terra-clan/ciel-content/pkg/client"
)

type fakeAPI struct {
	calls         atomic.Int32
	categoriesErr error
}

func (f *fakeAPI) ListFormations(ctx context.Context) ([]models.Formation, error) {
	f.calls.Add(1)
	return []models.Formation{
		{ID: "3", Level: models.LevelMaster, Title: "Master Cybersécurité"},
		{ID: "1", Level: models.LevelBacPro, Title: "Bac Pro CIEL"},
		{ID: "2", Level: models.LevelBTS, Title: "BTS CIEL"},
	}, nil
}

func (f *fakeAPI) GetFormation(ctx context.Context, level models.Level) (*models.Formation, error) {
	f.calls.Add(1)
	return &models.Formation{ID: "x", Level: level}, nil
}

func (f *fakeAPI) GetCielInfo(ctx context.Context) (*models.CielInfo, error) {
	f.calls.Add(1)
	return &models.CielInfo{Name: "CIEL", Stats: map[string]int{"students": 120}}, nil
}

func (f *fakeAPI) ListCategories(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	if f.categoriesErr != nil {
		return nil, f.categoriesErr
	}
	return []string{"Menaces", "Architecture"}, nil
}

func TestFormationsSortedAndCached(t *testing.T) {
	api := &fakeAPI{}
	s := NewService(api, refcache.NewMemoryCache())

	for i := 0; i < 2; i++ {
		formations, err := s.Formations(context.Background())
		if err != nil {
			t.Fatalf("Formations: %v", err)
		}
		if formations[0].Level != models.LevelBacPro || formations[2].Level != models.LevelMaster {
			t.Errorf("expected ladder order, got %+v", formations)
		}
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("expected second call served from cache, got %d upstream calls", got)
	}
}

func TestFormationRejectsUnknownLevel(t *testing.T) {
	api := &fakeAPI{}
	s := NewService(api, refcache.NewMemoryCache())

	if _, err := s.Formation(context.Background(), "DOCTORAT"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got %v", err)
	}
	if api.calls.Load() != 0 {
		t.Error("unknown level must not reach the upstream")
	}

	f, err := s.Formation(context.Background(), "bac-pro")
	if err != nil {
		t.Fatalf("Formation: %v", err)
	}
	if f.Level != models.LevelBacPro {
		t.Errorf("expected BAC_PRO, got %s", f.Level)
	}
}

func TestCategoriesFallback(t *testing.T) {
	api := &fakeAPI{categoriesErr: fmt.Errorf("%w: HTTP 404", client.ErrRequestFailed)}
	s := NewService(api, refcache.NewMemoryCache(), WithFallbackCategories([]string{"Tous", "Réseaux"}))

	categories, err := s.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(categories) != 2 || categories[0] != query.AllCategories || categories[1] != "Réseaux" {
		t.Errorf("unexpected categories: %v", categories)
	}

	bare := NewService(api, refcache.NewMemoryCache())
	if _, err := bare.Categories(context.Background()); !errors.Is(err, client.ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed without fallback, got %v", err)
	}
}

func TestCategoriesFromUpstream(t *testing.T) {
	s := NewService(&fakeAPI{}, refcache.NewMemoryCache(), WithFallbackCategories([]string{"Réseaux"}))

	categories, err := s.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	want := []string{query.AllCategories, "Menaces", "Architecture"}
	if fmt.Sprint(categories) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", categories, want)
	}
}

func TestInvalidate(t *testing.T) {
	api := &fakeAPI{}
	s := NewService(api, refcache.NewMemoryCache())

	s.CielInfo(context.Background())
	if err := s.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	s.CielInfo(context.Background())
	if got := api.calls.Load(); got != 2 {
		t.Errorf("expected a reload after invalidation, got %d calls", got)
	}
}

func TestSelection(t *testing.T) {
	s := NewSelection()
	if s.Level() != models.LevelBacPro {
		t.Errorf("expected BAC_PRO default, got %s", s.Level())
	}
	if _, err := s.Select("licence"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got %v", err)
	}
	if s.Level() != models.LevelBacPro {
		t.Error("rejected level must not change the selection")
	}
	if l, err := s.Select("master"); err != nil || l != models.LevelMaster {
		t.Errorf("Select(master) = %s, %v", l, err)
	}
}
