package markdown

import (
	"testing"

	"github.com/terra-clan/ciel-content/internal/models"
)

const article = `# Les dernières menaces en cybersécurité 2025

La cybersécurité évolue constamment, et **2025** apporte son lot de défis.

## Les principales menaces identifiées

### 1. Attaques par IA générative
Les cybercriminels utilisent maintenant l'IA.

## Comment se protéger ?

- Mise à jour régulière des systèmes
- Formation continue des équipes

---
`

func TestSegmentsKeepDocumentOrder(t *testing.T) {
	segs, err := Segments([]byte(article))
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}

	want := []struct {
		kind  models.SegmentKind
		level int
		text  string
	}{
		{models.SegmentHeading, 1, "Les dernières menaces en cybersécurité 2025"},
		{models.SegmentParagraph, 0, "La cybersécurité évolue constamment, et 2025 apporte son lot de défis."},
		{models.SegmentHeading, 2, "Les principales menaces identifiées"},
		{models.SegmentHeading, 3, "1. Attaques par IA générative"},
		{models.SegmentParagraph, 0, "Les cybercriminels utilisent maintenant l'IA."},
		{models.SegmentHeading, 2, "Comment se protéger ?"},
		{models.SegmentListItem, 0, "Mise à jour régulière des systèmes"},
		{models.SegmentListItem, 0, "Formation continue des équipes"},
	}

	if len(segs) != len(want) {
		for i, s := range segs {
			t.Logf("segment %d: %s %d %q", i, s.Kind, s.Level, s.Text)
		}
		t.Fatalf("expected %d segments, got %d", len(want), len(segs))
	}

	for i, w := range want {
		got := segs[i]
		if got.Kind != w.kind || got.Level != w.level || got.Text != w.text {
			t.Errorf("segment %d: got (%s, %d, %q), want (%s, %d, %q)",
				i, got.Kind, got.Level, got.Text, w.kind, w.level, w.text)
		}
	}
}

func TestSegmentHTMLKeepsInlineMarkup(t *testing.T) {
	segs, err := Segments([]byte("Un texte **important**."))
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].HTML != "<p>Un texte <strong>important</strong>.</p>" {
		t.Errorf("unexpected html %q", segs[0].HTML)
	}
}

func TestDeepHeadingsAreCapped(t *testing.T) {
	segs, err := Segments([]byte("##### Détail"))
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if len(segs) != 1 || segs[0].Level != 3 {
		t.Fatalf("expected one level-3 heading, got %+v", segs)
	}
}

func TestEmptyBody(t *testing.T) {
	segs, err := Segments(nil)
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("expected no segments, got %d", len(segs))
	}
}
