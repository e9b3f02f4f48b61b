// Package server exposes the draft, simulation, and graph operations over
// HTTP. All handlers read the current model through the factory snapshot, so
// a reload never tears a request in half.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/driftlab/stockflow/internal/ai"
	"github.com/driftlab/stockflow/internal/factory"
	"github.com/driftlab/stockflow/internal/store"
)

// Config holds the server dependencies.
type Config struct {
	Factory   *factory.Factory
	Store     *store.DraftStore
	Generator *ai.Generator
	Port      int
	Watch     bool
	Logger    *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	factory   *factory.Factory
	store     *store.DraftStore
	generator *ai.Generator
	port      int
	watch     bool
	logger    *slog.Logger
}

// New creates a server from the given configuration.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		factory:   cfg.Factory,
		store:     cfg.Store,
		generator: cfg.Generator,
		port:      cfg.Port,
		watch:     cfg.Watch,
		logger:    logger,
	}
}

// Serve starts the server and blocks until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			err := s.factory.Watch(egctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Routes builds the router. Exposed so tests can drive handlers without a
// listening socket.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", s.handleCreateDraft)
			r.Get("/", s.handleListDrafts)
			r.Get("/{draftID}", s.handleGetDraft)
			r.Put("/{draftID}", s.handleUpdateDraft)
			r.Delete("/{draftID}", s.handleDeleteDraft)
			r.Post("/{draftID}/changes", s.handleAddChange)
			r.Delete("/{draftID}/changes/{index}", s.handleRemoveChange)
			r.Post("/{draftID}/validate", s.handleValidateDraft)
			r.Post("/{draftID}/apply", s.handleApplyDraft)
		})

		r.Post("/validate-equation", s.handleValidateEquation)
		r.Post("/simulate", s.handleSimulate)
		r.Get("/graph", s.handleGraph)
		r.Get("/model", s.handleModel)
		r.Get("/scenarios", s.handleScenarios)
		r.Post("/ai/patch", s.handleAIPatch)
	})

	r.Get("/healthz", s.handleHealth)

	return r
}
