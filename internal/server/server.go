// Package server provides the HTTP surface of the catalog: the GraphQL
// endpoint, the SSE subscription stream and a health check.
package server

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shelfmark/shelfmark-server/internal/backup"
	"github.com/shelfmark/shelfmark-server/internal/graph"
	"github.com/shelfmark/shelfmark-server/internal/service"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	graphHandler  *graph.Handler
	streamHandler *graph.StreamHandler
	authService   *service.AuthService
	backupService *backup.Service
	router        *chi.Mux
	logger        *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(graphHandler *graph.Handler, streamHandler *graph.StreamHandler, authService *service.AuthService, backupService *backup.Service, logger *slog.Logger) *Server {
	s := &Server{
		graphHandler:  graphHandler,
		streamHandler: streamHandler,
		authService:   authService,
		backupService: backupService,
		router:        chi.NewRouter(),
		logger:        logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/healthz", s.handleHealthCheck)

	// GraphQL endpoint; bearer tokens resolve to a user on the context.
	s.router.Group(func(r chi.Router) {
		r.Use(graph.AuthContext(s.authService))
		r.Post("/graphql", s.graphHandler.ServeHTTP)
		r.Get("/graphql", s.graphHandler.ServeHTTP)

		// Subscriptions over SSE.
		r.Get("/graphql/stream", s.streamHandler.ServeHTTP)
		r.Post("/graphql/stream", s.streamHandler.ServeHTTP)

		// Catalog export, for authenticated users only.
		r.Post("/admin/backup", s.handleCreateBackup)
	})
}

// handleCreateBackup writes a catalog backup archive and reports its
// manifest.
func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	user, err := graph.UserFrom(r.Context())
	if err != nil || user == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	result, err := s.backupService.Create(r.Context())
	if err != nil {
		s.logger.Error("backup failed", "error", err.Error())
		http.Error(w, "backup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	body, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "backup failed", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("failed to write backup response", "error", err.Error())
	}
}

// handleHealthCheck responds to health check requests.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	body, err := json.Marshal(map[string]string{"status": "ok"})
	if err != nil {
		http.Error(w, "health check failed", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("failed to write health response", "error", err.Error())
	}
}
