// Package query turns a visitor's search, filter, sort and page inputs into a
// canonical, comparable request descriptor for the article listing.
package query

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// AllCategories is the listing's "every category" choice. It is never sent
	// upstream: the API only understands an absent category.
	AllCategories = "Tous"

	DefaultPageSize = 9
	MaxPageSize     = 50
)

// SortKey orders the article listing.
type SortKey string

const (
	SortRecent        SortKey = "recent"
	SortPopular       SortKey = "popular"
	SortMostCommented SortKey = "mostCommented"
)

// ParseSortKey accepts both the descriptor names and the upstream wire names.
// Unknown values fall back to SortRecent.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "popular":
		return SortPopular
	case "mostcommented", "comments", "most_commented":
		return SortMostCommented
	default:
		return SortRecent
	}
}

// Wire returns the value the upstream expects in the sort parameter.
func (k SortKey) Wire() string {
	switch k {
	case SortPopular:
		return "popular"
	case SortMostCommented:
		return "comments"
	default:
		return "recent"
	}
}

// Descriptor is what the visitor currently wants to see. It is a value type:
// two descriptors describe the same request iff they are ==.
type Descriptor struct {
	Search   string  `json:"search,omitempty"`
	Category string  `json:"category,omitempty"`
	Sort     SortKey `json:"sort"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// Build normalizes raw inputs into a Descriptor.
func Build(search, category string, sort SortKey, page, pageSize int) Descriptor {
	return Descriptor{
		Search:   normalizeSearch(search),
		Category: normalizeCategory(category),
		Sort:     ParseSortKey(string(sort)),
		Page:     normalizePage(page),
		PageSize: normalizePageSize(pageSize),
	}
}

// Default is the first page of the most recent articles.
func Default(pageSize int) Descriptor {
	return Build("", "", SortRecent, 1, pageSize)
}

// WithSearch changes the search text. A different search is a new query, so
// the page goes back to 1.
func (d Descriptor) WithSearch(search string) Descriptor {
	search = normalizeSearch(search)
	if search == d.Search {
		return d
	}
	d.Search = search
	d.Page = 1
	return d
}

// WithCategory changes the category filter and resets the page.
func (d Descriptor) WithCategory(category string) Descriptor {
	category = normalizeCategory(category)
	if category == d.Category {
		return d
	}
	d.Category = category
	d.Page = 1
	return d
}

// WithSort changes the ordering and resets the page.
func (d Descriptor) WithSort(sort SortKey) Descriptor {
	sort = ParseSortKey(string(sort))
	if sort == d.Sort {
		return d
	}
	d.Sort = sort
	d.Page = 1
	return d
}

// WithPage moves to another page of the same query.
func (d Descriptor) WithPage(page int) Descriptor {
	d.Page = normalizePage(page)
	return d
}

// SameShape reports whether d and other differ at most by page.
func (d Descriptor) SameShape(other Descriptor) bool {
	return d.WithPage(1) == other.WithPage(1)
}

// Values renders the descriptor as upstream query parameters. Absent filters
// are omitted rather than sent empty.
func (d Descriptor) Values() url.Values {
	v := url.Values{}
	if d.Search != "" {
		v.Set("search", d.Search)
	}
	if d.Category != "" {
		v.Set("category", d.Category)
	}
	v.Set("sort", d.Sort.Wire())
	v.Set("page", strconv.Itoa(normalizePage(d.Page)))
	v.Set("limit", strconv.Itoa(normalizePageSize(d.PageSize)))
	return v
}

// Key is a stable string form of the descriptor, used for in-flight
// de-duplication and log attributes.
func (d Descriptor) Key() string {
	return d.Values().Encode()
}

func (d Descriptor) String() string {
	return d.Key()
}

func normalizeSearch(s string) string {
	return strings.TrimSpace(s)
}

func normalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if strings.EqualFold(c, AllCategories) || strings.EqualFold(c, "all") {
		return ""
	}
	return c
}

func normalizePage(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

func normalizePageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}
