package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/ciel-content/internal/article"
	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/reconciler"
	"github.com/terra-clan/ciel-content/internal/session"
)

// --- Session lifecycle ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		respondFailure(w, err, "failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateSessionResponse{
		ID:        sess.ID,
		Query:     sess.Browser.Query(),
		StreamURL: "/api/v1/sessions/" + sess.ID + "/stream",
		CreatedAt: sess.CreatedAt,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	if err := s.sessions.Close(r.Context(), sess.ID); err != nil {
		respondFailure(w, err, "failed to close session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "session closed",
	})
}

// --- Listing ---

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	respondListing(w, r, sess, nil)
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	var req models.QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pending, changed := sess.Browser.Update(r.Context(), func(d query.Descriptor) query.Descriptor {
		if req.Search != nil {
			d = d.WithSearch(*req.Search)
		}
		if req.Category != nil {
			d = d.WithCategory(*req.Category)
		}
		if req.Sort != nil {
			d = d.WithSort(query.ParseSortKey(*req.Sort))
		}
		return d
	})
	if changed {
		persist(r, sess)
	}

	respondListing(w, r, sess, pending)
}

func (s *Server) handleGoToPage(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	var req models.PageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	current := sess.Browser.Query().Page
	pending, moved := sess.Browser.GoTo(r.Context(), req.Page)
	if !moved && req.Page != current {
		respondError(w, http.StatusBadRequest, "page_out_of_range", "page is out of range")
		return
	}
	if moved {
		persist(r, sess)
	}

	respondListing(w, r, sess, pending)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	pending, moved := sess.Browser.Next(r.Context())
	if moved {
		persist(r, sess)
	}
	respondListing(w, r, sess, pending)
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	pending, moved := sess.Browser.Prev(r.Context())
	if moved {
		persist(r, sess)
	}
	respondListing(w, r, sess, pending)
}

func (s *Server) handleRetryListing(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	pending, err := sess.Browser.Retry(r.Context())
	if err != nil {
		respondFailure(w, err, "failed to retry listing")
		return
	}
	respondListing(w, r, sess, pending)
}

// respondListing writes the listing screen. With ?wait=true it first waits
// for the request a mutation issued; a failed or stale outcome still shows
// up in the projected listing.
func respondListing(w http.ResponseWriter, r *http.Request, sess *session.Session, pending *reconciler.Pending) {
	if pending != nil && r.URL.Query().Get("wait") == "true" {
		if _, err := pending.Wait(r.Context()); err != nil {
			slog.Debug("listing request failed", "session_id", sess.ID, "query", pending.Descriptor().Key(), "error", err)
		}
	}
	respondJSON(w, http.StatusOK, sess.Listing())
}

// persist saves the session after a navigation. A storage failure only costs
// the visitor their position on restore, so the request still succeeds.
func persist(r *http.Request, sess *session.Session) {
	if err := sess.Persist(r.Context()); err != nil {
		slog.Error("failed to persist session", "session_id", sess.ID, "error", err)
	}
}

// --- Article detail ---

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	articleID := chi.URLParam(r, "aid")

	if err := sess.Article(articleID).Load(r.Context()); err != nil {
		slog.Warn("article load failed", "session_id", sess.ID, "article_id", articleID, "error", err)
	}

	respondJSON(w, http.StatusOK, sess.ArticlePage(articleID))
}

func (s *Server) handleRetryArticle(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	articleID := chi.URLParam(r, "aid")

	if err := sess.Article(articleID).Retry(r.Context()); err != nil {
		if errors.Is(err, article.ErrNothingToRetry) {
			respondFailure(w, err, "failed to retry article")
			return
		}
		slog.Warn("article retry failed", "session_id", sess.ID, "article_id", articleID, "error", err)
	}

	respondJSON(w, http.StatusOK, sess.ArticlePage(articleID))
}

// --- Interactions ---

func (s *Server) handleLikeArticle(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	articleID := chi.URLParam(r, "aid")

	likes, err := sess.Interactions.LikeArticle(r.Context(), articleID)
	if err != nil {
		respondFailure(w, err, "failed to like article")
		return
	}

	respondJSON(w, http.StatusOK, models.LikeResponse{ID: articleID, Likes: likes})
}

func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	commentID := chi.URLParam(r, "cid")

	likes, err := sess.Interactions.LikeComment(r.Context(), commentID)
	if err != nil {
		respondFailure(w, err, "failed to like comment")
		return
	}

	respondJSON(w, http.StatusOK, models.LikeResponse{ID: commentID, Likes: likes})
}

func (s *Server) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	articleID := chi.URLParam(r, "aid")

	var draft models.CommentDraft
	if !decodeBody(w, r, &draft) {
		return
	}

	sess.Interactions.SetDraft(r.Context(), articleID, draft)
	respondJSON(w, http.StatusOK, sess.ArticlePage(articleID))
}

func (s *Server) handleSubmitComment(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	articleID := chi.URLParam(r, "aid")

	var draft models.CommentDraft
	if !decodeBody(w, r, &draft) {
		return
	}

	// the view must be registered before the thread comes back
	v := sess.Article(articleID)

	if _, err := sess.Interactions.Submit(r.Context(), articleID, draft.Author, draft.Content); err != nil {
		respondFailure(w, err, "failed to submit comment")
		return
	}

	if err := v.Load(r.Context()); err != nil {
		slog.Warn("article load failed", "session_id", sess.ID, "article_id", articleID, "error", err)
	}

	respondJSON(w, http.StatusCreated, sess.ArticlePage(articleID))
}
