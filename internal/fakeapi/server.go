// Package fakeapi is a local stand-in for the list API. It answers the
// segment endpoints with the same envelopes as the remote system and keeps
// its state in BoltDB, so the CLI and the client can be exercised offline.
package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/listctl/internal/config"
	"github.com/foxzi/listctl/internal/ipfilter"
	"github.com/foxzi/listctl/internal/metrics"
)

// Server is the fake API HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      *Store
	config     *config.FakeConfig
	metrics    *metrics.Metrics
	filter     *ipfilter.Filter
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new fake API server. m may be nil.
func NewServer(store *Store, cfg *config.FakeConfig, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	filter, err := ipfilter.New(cfg.AllowedIPs, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid fake.allowed_ips: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		store:     store,
		config:    cfg,
		metrics:   m,
		filter:    filter,
		logger:    logger,
		startTime: time.Now(),
	}

	s.setupRoutes()
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Seed stores the configured lists and their segments. Segments that
// already exist, by ID or by name within the list, are left untouched.
func Seed(store *Store, lists []config.FakeList) error {
	for _, l := range lists {
		if err := store.PutList(&List{ID: l.ID, Name: l.Name, Count: l.Count}); err != nil {
			return fmt.Errorf("seed list %d: %w", l.ID, err)
		}

		existing, err := store.ListSegments(l.ID)
		if err != nil {
			return fmt.Errorf("seed list %d: %w", l.ID, err)
		}
		names := make(map[string]bool, len(existing))
		for _, seg := range existing {
			names[seg.Name] = true
		}

		for _, fs := range l.Segments {
			if names[fs.Name] {
				continue
			}
			if fs.ID > 0 {
				if _, err := store.GetSegment(fs.ID); err == nil {
					continue
				}
			}
			seg := &Segment{
				ID:         fs.ID,
				ListID:     l.ID,
				Name:       fs.Name,
				Query:      fs.Query,
				Count:      fs.Count,
				Engagement: fs.Engagement,
			}
			if err := store.CreateSegment(seg); err != nil {
				return fmt.Errorf("seed segment %q of list %d: %w", fs.Name, l.ID, err)
			}
			names[fs.Name] = true
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.filter.Middleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware(s.metrics))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/List", func(r chi.Router) {
		r.Use(s.formMiddleware)
		r.Use(s.authMiddleware)

		r.Post("/CreateSublist", s.handleCreateSublist)
		r.Post("/SetInfo", s.handleSetInfo)
		r.Post("/DeleteSublist", s.handleDeleteSublist)
		r.Post("/GetInfo", s.handleGetInfo)
		r.Post("/GetSublists", s.handleGetSublists)
		r.Post("/GetList", s.handleGetList)
	})
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server on the configured address
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves requests on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting fake API server", "addr", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down fake API server")
	return s.httpServer.Shutdown(ctx)
}
