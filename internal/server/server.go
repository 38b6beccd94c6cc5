// Package server exposes the extraction pipeline over HTTP. Routes are
// thin: they validate input, consult the access controller, and
// dispatch to the intel service; all extraction logic lives in pkg.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/crateintel/internal/config"
	"github.com/matzehuels/crateintel/pkg/auth"
	"github.com/matzehuels/crateintel/pkg/docsource"
	"github.com/matzehuels/crateintel/pkg/intel"
	"github.com/matzehuels/crateintel/pkg/store"
	"github.com/matzehuels/crateintel/pkg/upstream/crates"
	"github.com/matzehuels/crateintel/pkg/usage"
)

// Deps bundles the services a Server dispatches to.
type Deps struct {
	Intel    *intel.Service
	Auth     *auth.Service
	Usage    *usage.Recorder
	Store    store.Store
	Registry *crates.Client
	Source   docsource.Source
	Logger   *log.Logger
}

// Server is the HTTP front of the service.
type Server struct {
	cfg    *config.Config
	router chi.Router
	deps   Deps
	logger *log.Logger
}

// New builds the router. Billed routes (crate, graph, search, bulk) sit
// behind authentication and rate limiting; popular and debug are open
// diagnostics.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if timeout := cfg.Server.RequestTimeout.Duration; timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.rateLimit)
			r.Get("/crate/{name}", s.handleCrate)
			r.Get("/crate/{name}/graph", s.handleGraph)
			r.Get("/search", s.handleSearch)
			r.Get("/bulk", s.handleBulk)
		})
		r.Get("/popular", s.handlePopular)
		r.Get("/debug", s.handleDebug)
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeErrorBody(w, http.StatusNotFound, "NOT_FOUND", "unknown route")
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		s.logger.Debug("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
