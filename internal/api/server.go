package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/ciel-content/internal/catalog"
	"github.com/terra-clan/ciel-content/internal/config"
	"github.com/terra-clan/ciel-content/internal/session"
)

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	sessions *session.Manager
	catalog  *catalog.Service
	checks   []ReadinessCheck
	resolver *SessionMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	sessions *session.Manager,
	catalogService *catalog.Service,
	checks ...ReadinessCheck,
) *Server {
	s := &Server{
		config:   cfg,
		sessions: sessions,
		catalog:  catalogService,
		checks:   checks,
		resolver: NewSessionMiddleware(sessions),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(60*time.Second)).Get("/ciel-info", s.handleCielInfo)
		r.With(middleware.Timeout(60*time.Second)).Get("/categories", s.handleCategories)
		r.With(middleware.Timeout(60*time.Second)).Get("/formations/{level}", s.handleFormation)
		r.Post("/catalog/invalidate", s.handleInvalidateCatalog)
		r.With(middleware.Timeout(60*time.Second)).Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Use(s.resolver.Resolve)

			// long-lived, outside the request timeout
			r.Get("/stream", s.handleStream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Delete("/", s.handleDeleteSession)

				r.Get("/articles", s.handleListing)
				r.Put("/query", s.handleSetQuery)
				r.Put("/page", s.handleGoToPage)
				r.Post("/page/next", s.handleNextPage)
				r.Post("/page/prev", s.handlePrevPage)
				r.Post("/page/retry", s.handleRetryListing)

				r.Get("/articles/{aid}", s.handleGetArticle)
				r.Post("/articles/{aid}/retry", s.handleRetryArticle)
				r.Post("/articles/{aid}/like", s.handleLikeArticle)
				r.Put("/articles/{aid}/draft", s.handleSetDraft)
				r.Post("/articles/{aid}/comments", s.handleSubmitComment)
				r.Post("/comments/{cid}/like", s.handleLikeComment)

				r.Get("/formations", s.handleFormations)
				r.Put("/formations/level", s.handleSelectLevel)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
