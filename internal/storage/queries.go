package storage

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
)

const (
	tableSessions = "sessions"
	tableDrafts   = "comment_drafts"
)

var sessionColumns = []string{
	"id", "search", "category", "sort_key", "page", "page_size", "level", "created_at", "updated_at",
}

// queries builds the SQL shared by the PostgreSQL and SQLite repositories.
// Both dialects accept ON CONFLICT ... DO UPDATE with the excluded row.
type queries struct {
	sb sq.StatementBuilderType
}

func newQueries(ph sq.PlaceholderFormat) queries {
	return queries{sb: sq.StatementBuilder.PlaceholderFormat(ph)}
}

func (q queries) upsertSession(s *models.SessionState) (string, []any, error) {
	return q.sb.Insert(tableSessions).
		Columns(sessionColumns...).
		Values(
			s.ID,
			s.Query.Search,
			s.Query.Category,
			string(s.Query.Sort),
			s.Query.Page,
			s.Query.PageSize,
			string(s.Level),
			s.CreatedAt.UnixMilli(),
			s.UpdatedAt.UnixMilli(),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			search = excluded.search,
			category = excluded.category,
			sort_key = excluded.sort_key,
			page = excluded.page,
			page_size = excluded.page_size,
			level = excluded.level,
			updated_at = excluded.updated_at`).
		ToSql()
}

func (q queries) selectSession(id string) (string, []any, error) {
	return q.sb.Select(sessionColumns...).
		From(tableSessions).
		Where(sq.Eq{"id": id}).
		ToSql()
}

func (q queries) selectIdleSessions(before time.Time, limit int) (string, []any, error) {
	b := q.sb.Select(sessionColumns...).
		From(tableSessions).
		Where(sq.Lt{"updated_at": before.UnixMilli()}).
		OrderBy("updated_at ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b.ToSql()
}

func (q queries) deleteSession(id string) (string, []any, error) {
	return q.sb.Delete(tableSessions).Where(sq.Eq{"id": id}).ToSql()
}

func (q queries) upsertDraft(sessionID, articleID string, d models.CommentDraft, now time.Time) (string, []any, error) {
	return q.sb.Insert(tableDrafts).
		Columns("session_id", "article_id", "author", "content", "updated_at").
		Values(sessionID, articleID, d.Author, d.Content, now.UnixMilli()).
		Suffix(`ON CONFLICT (session_id, article_id) DO UPDATE SET
			author = excluded.author,
			content = excluded.content,
			updated_at = excluded.updated_at`).
		ToSql()
}

func (q queries) selectDrafts(sessionID string) (string, []any, error) {
	return q.sb.Select("article_id", "author", "content").
		From(tableDrafts).
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("article_id").
		ToSql()
}

func (q queries) deleteDraft(sessionID, articleID string) (string, []any, error) {
	return q.sb.Delete(tableDrafts).
		Where(sq.Eq{"session_id": sessionID, "article_id": articleID}).
		ToSql()
}

func (q queries) deleteDrafts(sessionID string) (string, []any, error) {
	return q.sb.Delete(tableDrafts).Where(sq.Eq{"session_id": sessionID}).ToSql()
}

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.SessionState, error) {
	var (
		s                  models.SessionState
		sortKey, level     string
		createdAt, updated int64
	)
	err := row.Scan(
		&s.ID,
		&s.Query.Search,
		&s.Query.Category,
		&sortKey,
		&s.Query.Page,
		&s.Query.PageSize,
		&level,
		&createdAt,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	s.Query = query.Build(s.Query.Search, s.Query.Category, query.SortKey(sortKey), s.Query.Page, s.Query.PageSize)
	s.Level = models.Level(level)
	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.UpdatedAt = time.UnixMilli(updated).UTC()
	return &s, nil
}
