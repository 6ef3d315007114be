package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/ciel-content/internal/article"
	"github.com/terra-clan/ciel-content/internal/catalog"
	"github.com/terra-clan/ciel-content/internal/interaction"
	"github.com/terra-clan/ciel-content/internal/reconciler"
	"github.com/terra-clan/ciel-content/internal/session"
	"github.com/terra-clan/ciel-content/pkg/client"
)

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondFailure maps a coordinator error to a status code. Errors without a
// mapping are logged and reported as internal errors with fallback.
func respondFailure(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, interaction.ErrValidationFailed):
		respondError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
	case errors.Is(err, interaction.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, reconciler.ErrNothingToRetry), errors.Is(err, article.ErrNothingToRetry):
		respondError(w, http.StatusConflict, "nothing_to_retry", err.Error())
	case errors.Is(err, catalog.ErrUnknownLevel):
		respondError(w, http.StatusBadRequest, "unknown_level", err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, client.ErrRequestFailed):
		respondError(w, http.StatusBadGateway, "request_failed", fallback)
	default:
		slog.Error(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": s.sessions.Count(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, c := range s.checks {
		if err := c.Check(r.Context()); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", c.Name+" not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Reference data handlers

func (s *Server) handleCielInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.catalog.CielInfo(r.Context())
	if err != nil {
		respondFailure(w, err, "failed to get programme info")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.Categories(r.Context())
	if err != nil {
		respondFailure(w, err, "failed to list categories")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"total":      len(categories),
	})
}
