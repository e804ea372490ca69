// Package server provides the local HTTP API for Tsuzuri.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tsuzuri/internal/answer"
	"github.com/hyperjump/tsuzuri/internal/config"
	"github.com/hyperjump/tsuzuri/internal/index"
	"github.com/hyperjump/tsuzuri/internal/insight"
	"github.com/hyperjump/tsuzuri/internal/journal"
	"github.com/hyperjump/tsuzuri/internal/keyword"
	"github.com/hyperjump/tsuzuri/internal/storage"
	"github.com/hyperjump/tsuzuri/internal/summary"
)

// Server is the HTTP server for the Tsuzuri API.
type Server struct {
	entries   *journal.FileStore
	store     *storage.SQLiteStore
	index     *index.EmbeddingIndex
	keyword   *keyword.EntryIndex
	engine    *answer.Engine
	insights  *insight.Cache
	hierarchy *summary.Hierarchy

	config     *config.Config
	configPath string
	configMu   sync.Mutex

	logger *zap.Logger
	server *http.Server
}

// Deps bundles the wired components the server exposes.
type Deps struct {
	Entries   *journal.FileStore
	Store     *storage.SQLiteStore
	Index     *index.EmbeddingIndex
	Keyword   *keyword.EntryIndex
	Engine    *answer.Engine
	Insights  *insight.Cache
	Hierarchy *summary.Hierarchy
}

// NewServer creates a server with the given dependencies. configPath may be
// empty, in which case config updates are not persisted to disk.
func NewServer(deps Deps, cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	return &Server{
		entries:    deps.Entries,
		store:      deps.Store,
		index:      deps.Index,
		keyword:    deps.Keyword,
		engine:     deps.Engine,
		insights:   deps.Insights,
		hierarchy:  deps.Hierarchy,
		config:     cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/entries", s.handleCreateEntry)
		r.Get("/entries", s.handleListEntries)
		r.Get("/entries/{id}", s.handleGetEntry)

		r.Post("/query", s.handleQuery)
		r.Get("/search", s.handleSearch)
		r.Post("/index/rebuild", s.handleRebuildIndex)

		r.Post("/insight/on_open", s.handleInsightOnOpen)

		r.Post("/summaries/run", s.handleRunSummaries)
		r.Get("/summaries", s.handleListSummaries)

		r.Post("/actions", s.handleCreateAction)
		r.Get("/actions", s.handleListActions)
		r.Patch("/actions/{id}", s.handleUpdateAction)
		r.Delete("/actions/{id}", s.handleDeleteAction)

		r.Get("/export", s.handleExport)

		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handleUpdateConfig)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
