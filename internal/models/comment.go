package models

import "strings"

// Comment belongs to an article's thread. The client never edits or deletes
// comments; the thread order is the server's.
type Comment struct {
	ID          string    `json:"id"`
	ArticleID   string    `json:"article_id"`
	Author      string    `json:"author"`
	Content     string    `json:"content"`
	PublishedAt Timestamp `json:"published_at"`
	LikeCount   int       `json:"likes"`
}

// CommentDraft is what the visitor has typed into the comment form. It is also
// the body of a comment submission.
type CommentDraft struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Trimmed returns the draft with surrounding whitespace removed.
func (d CommentDraft) Trimmed() CommentDraft {
	return CommentDraft{
		Author:  strings.TrimSpace(d.Author),
		Content: strings.TrimSpace(d.Content),
	}
}

// Complete reports whether both fields are non-empty after trimming.
func (d CommentDraft) Complete() bool {
	t := d.Trimmed()
	return t.Author != "" && t.Content != ""
}

// IsZero reports whether nothing has been typed.
func (d CommentDraft) IsZero() bool {
	return d.Author == "" && d.Content == ""
}
