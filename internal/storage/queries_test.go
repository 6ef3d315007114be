package storage

import (
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
)

func TestQueriesPlaceholders(t *testing.T) {
	s := &models.SessionState{ID: "s1", Query: query.Default(9), CreatedAt: time.Unix(0, 0), UpdatedAt: time.Unix(0, 0)}

	pg, args, err := newQueries(sq.Dollar).upsertSession(s)
	if err != nil {
		t.Fatalf("upsertSession: %v", err)
	}
	if !strings.Contains(pg, "$9") || strings.Contains(pg, "?") {
		t.Errorf("expected dollar placeholders, got %s", pg)
	}
	if len(args) != len(sessionColumns) {
		t.Errorf("expected %d args, got %d", len(sessionColumns), len(args))
	}

	lite, _, err := newQueries(sq.Question).deleteDraft("s1", "a1")
	if err != nil {
		t.Fatalf("deleteDraft: %v", err)
	}
	if strings.Contains(lite, "$") || strings.Count(lite, "?") != 2 {
		t.Errorf("expected question placeholders, got %s", lite)
	}
}

func TestIdleQueryWithoutLimit(t *testing.T) {
	q, _, err := newQueries(sq.Question).selectIdleSessions(time.Now(), 0)
	if err != nil {
		t.Fatalf("selectIdleSessions: %v", err)
	}
	if strings.Contains(q, "LIMIT") {
		t.Errorf("no limit expected, got %s", q)
	}
}
