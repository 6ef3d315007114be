// Package markdown splits an article's Markdown body into block segments.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/terra-clan/ciel-content/internal/models"
)

var md = goldmark.New()

const maxHeadingLevel = 3

// Segments parses src and returns its top-level blocks in document order.
// Lists contribute one segment per item. Blocks without visible text
// (thematic breaks, empty HTML) are dropped.
func Segments(src []byte) ([]models.Segment, error) {
	doc := md.Parser().Parse(text.NewReader(src))

	segments := []models.Segment{}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.ThematicBreak:
			continue
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				seg, err := segment(src, item, models.SegmentListItem, 0)
				if err != nil {
					return nil, err
				}
				if seg.Text != "" {
					segments = append(segments, seg)
				}
			}
			continue
		case *ast.Heading:
			level := node.Level
			if level > maxHeadingLevel {
				level = maxHeadingLevel
			}
			seg, err := segment(src, node, models.SegmentHeading, level)
			if err != nil {
				return nil, err
			}
			if seg.Text != "" {
				segments = append(segments, seg)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			seg, err := segment(src, node, models.SegmentCode, 0)
			if err != nil {
				return nil, err
			}
			if seg.Text != "" {
				segments = append(segments, seg)
			}
		default:
			seg, err := segment(src, node, models.SegmentParagraph, 0)
			if err != nil {
				return nil, err
			}
			if seg.Text != "" {
				segments = append(segments, seg)
			}
		}
	}

	return segments, nil
}

func segment(src []byte, n ast.Node, kind models.SegmentKind, level int) (models.Segment, error) {
	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, src, n); err != nil {
		return models.Segment{}, fmt.Errorf("failed to render %s block: %w", kind, err)
	}
	html := strings.TrimSpace(buf.String())

	plain, err := plainText(html)
	if err != nil {
		return models.Segment{}, err
	}

	return models.Segment{
		Kind:  kind,
		Level: level,
		Text:  plain,
		HTML:  html,
	}, nil
}

func plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse rendered block: %w", err)
	}
	return strings.TrimSpace(doc.Text()), nil
}
