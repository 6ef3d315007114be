package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/ciel-content/internal/session"
)

// SessionMiddleware resolves the {sid} URL parameter to a visitor session
type SessionMiddleware struct {
	sessions *session.Manager
}

// NewSessionMiddleware creates new session middleware
func NewSessionMiddleware(sessions *session.Manager) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Resolve loads the session named in the path, restoring it from storage if
// needed, and puts it in the request context
func (m *SessionMiddleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		if sid == "" {
			respondError(w, http.StatusBadRequest, "validation_error", "session id is required")
			return
		}

		sess, err := m.sessions.Get(r.Context(), sid)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				respondError(w, http.StatusNotFound, "not_found", "session not found")
				return
			}
			slog.Error("failed to resolve session", "error", err, "session_id", sid)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to load session")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}
