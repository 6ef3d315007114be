// Package catalog serves the read-only reference data of the site: the
// training formations, the programme description and the category list.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/refcache"
)

// ErrUnknownLevel is returned for a level outside BAC_PRO, BTS and MASTER
var ErrUnknownLevel = errors.New("unknown formation level")

const (
	keyFormations = "formations"
	keyCielInfo   = "ciel-info"
	keyCategories = "categories"
)

// API is the part of the upstream contract the catalog reads
type API interface {
	ListFormations(ctx context.Context) ([]models.Formation, error)
	GetFormation(ctx context.Context, level models.Level) (*models.Formation, error)
	GetCielInfo(ctx context.Context) (*models.CielInfo, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Option configures a Service
type Option func(*Service)

// WithTTL sets how long reference data stays cached
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithFallbackCategories sets the category list used when the upstream has
// none to offer
func WithFallbackCategories(categories []string) Option {
	return func(s *Service) {
		s.fallback = append([]string(nil), categories...)
	}
}

// WithSeedFormations sets the formations served while the upstream cannot
// list them
func WithSeedFormations(formations []models.Formation) Option {
	return func(s *Service) {
		s.seed = append([]models.Formation(nil), formations...)
	}
}

// Service is safe for concurrent use
type Service struct {
	api      API
	cache    refcache.Cache
	ttl      time.Duration
	fallback []string
	seed     []models.Formation
	group    singleflight.Group
}

// NewService creates a catalog backed by api and cache
func NewService(api API, cache refcache.Cache, opts ...Option) *Service {
	s := &Service{
		api:   api,
		cache: cache,
		ttl:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Formations returns every formation in ladder order
func (s *Service) Formations(ctx context.Context) ([]models.Formation, error) {
	formations, err := cached(ctx, s, keyFormations, func(ctx context.Context) ([]models.Formation, error) {
		return s.api.ListFormations(ctx)
	})
	if err != nil {
		if len(s.seed) == 0 {
			return nil, fmt.Errorf("failed to list formations: %w", err)
		}
		slog.Warn("using seed formations", "error", err)
		formations = s.seed
	}

	formations = append([]models.Formation(nil), formations...)
	sort.SliceStable(formations, func(i, j int) bool {
		return rank(formations[i].Level) < rank(formations[j].Level)
	})
	return formations, nil
}

// Formation returns the formation of one level
func (s *Service) Formation(ctx context.Context, level string) (*models.Formation, error) {
	l, ok := models.ParseLevel(level)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	f, err := cached(ctx, s, "formation:"+string(l), func(ctx context.Context) (*models.Formation, error) {
		return s.api.GetFormation(ctx, l)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get formation %s: %w", l, err)
	}
	return f, nil
}

// CielInfo returns the programme description
func (s *Service) CielInfo(ctx context.Context) (*models.CielInfo, error) {
	info, err := cached(ctx, s, keyCielInfo, func(ctx context.Context) (*models.CielInfo, error) {
		return s.api.GetCielInfo(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get programme info: %w", err)
	}
	return info, nil
}

// Categories returns the filter options, "all categories" first. When the
// upstream cannot provide the list the configured fallback is used.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := cached(ctx, s, keyCategories, func(ctx context.Context) ([]string, error) {
		return s.api.ListCategories(ctx)
	})
	if err != nil {
		if len(s.fallback) == 0 {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		slog.Warn("using fallback categories", "error", err)
		categories = s.fallback
	}

	out := make([]string, 0, len(categories)+1)
	out = append(out, query.AllCategories)
	for _, c := range categories {
		if c == "" || c == query.AllCategories {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Invalidate drops all cached reference data
func (s *Service) Invalidate(ctx context.Context) error {
	keys := []string{keyFormations, keyCielInfo, keyCategories}
	for _, l := range models.Levels {
		keys = append(keys, "formation:"+string(l))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	return nil
}

func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var v T
	found, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		slog.Warn("reference cache read failed", "key", key, "error", err)
	} else if found {
		return v, nil
	}

	res, err, _ := s.group.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, loaded, s.ttl); err != nil {
			slog.Warn("reference cache write failed", "key", key, "error", err)
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func rank(l models.Level) int {
	if r := l.Rank(); r > 0 {
		return r
	}
	return len(models.Levels) + 1
}
