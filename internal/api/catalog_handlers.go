package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/view"
)

func (s *Server) handleFormations(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	if level := r.URL.Query().Get("level"); level != "" {
		if _, err := sess.Selection.Select(level); err != nil {
			respondFailure(w, err, "failed to select level")
			return
		}
		persist(r, sess)
	}

	s.respondCatalog(w, r, sess.Selection.Level())
}

func (s *Server) handleSelectLevel(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	var req models.LevelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	level, err := sess.Selection.Select(req.Level)
	if err != nil {
		respondFailure(w, err, "failed to select level")
		return
	}
	persist(r, sess)

	s.respondCatalog(w, r, level)
}

func (s *Server) respondCatalog(w http.ResponseWriter, r *http.Request, level models.Level) {
	formations, err := s.catalog.Formations(r.Context())
	if err != nil {
		respondFailure(w, err, "failed to list formations")
		return
	}
	respondJSON(w, http.StatusOK, view.ProjectCatalog(formations, level))
}

func (s *Server) handleFormation(w http.ResponseWriter, r *http.Request) {
	formation, err := s.catalog.Formation(r.Context(), chi.URLParam(r, "level"))
	if err != nil {
		respondFailure(w, err, "failed to get formation")
		return
	}
	respondJSON(w, http.StatusOK, formation)
}

// handleInvalidateCatalog drops cached reference data so the next read goes
// to the upstream
func (s *Server) handleInvalidateCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Invalidate(r.Context()); err != nil {
		respondFailure(w, err, "failed to invalidate catalog")
		return
	}
	slog.Info("catalog cache invalidated")
	respondJSON(w, http.StatusOK, map[string]bool{"invalidated": true})
}
