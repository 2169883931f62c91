package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"procsight/app"
	"procsight/internal/config"
	"procsight/internal/dataset"
)

// Server exposes the dataset store and analysis service over HTTP. All
// state lives in the store; handlers only translate between JSON and the
// application layer.
type Server struct {
	router   *chi.Mux
	store    *dataset.Store
	analysis *app.AnalysisService
	cfg      *config.Config
}

// NewServer wires the HTTP surface.
func NewServer(store *dataset.Store, analysis *app.AnalysisService, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    store,
		analysis: analysis,
		cfg:      cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.Post("/api/sources", s.handleLoadSources)
	s.router.Delete("/api/sources", s.handleClearSources)
	s.router.Get("/api/dataset", s.handleDatasetSummary)
	s.router.Get("/api/series", s.handleSeriesData)
	s.router.Post("/api/analyze", s.handleAnalyze)
	s.router.Get("/api/export", s.handleExport)
	s.router.Get("/healthz", s.handleHealth)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := ":" + s.cfg.Server.Port
	log.Printf("[API] listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
