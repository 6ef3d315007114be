package models

import (
	"github.com/terra-clan/ciel-content/internal/query"
)

// ArticleSummary is one entry of the article listing. Everything but the two
// counters is immutable; counters only change through server-confirmed values.
type ArticleSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt"`
	Category     string    `json:"category"`
	Author       string    `json:"author"`
	PublishedAt  Timestamp `json:"published_at"`
	ReadTime     string    `json:"read_time"`
	LikeCount    int       `json:"likes"`
	CommentCount int       `json:"comment_count"`
}

// SegmentKind is the block type of a piece of article content.
type SegmentKind string

const (
	SegmentHeading   SegmentKind = "heading"
	SegmentParagraph SegmentKind = "paragraph"
	SegmentListItem  SegmentKind = "list_item"
	SegmentCode      SegmentKind = "code"
)

// Segment is one block-level piece of an article body, in document order.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Level int         `json:"level,omitempty"` // heading depth, 1-3
	Text  string      `json:"text"`
	HTML  string      `json:"html"`
}

// ArticleDetail is the full article shown on its own page.
type ArticleDetail struct {
	ArticleSummary
	Markdown string    `json:"markdown"`
	Content  []Segment `json:"content"`
	Tags     []string  `json:"tags"`
}

// ResultPage is one page of the listing together with the descriptor it
// answers, so a late response can be recognised as stale.
type ResultPage struct {
	Items      []ArticleSummary `json:"items"`
	Total      int              `json:"total"`
	Descriptor query.Descriptor `json:"descriptor"`
}

// Clone returns a copy whose Items can be modified independently.
func (p *ResultPage) Clone() *ResultPage {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Items = append([]ArticleSummary(nil), p.Items...)
	return &cp
}
