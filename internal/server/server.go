package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/me/wolf/internal/config"
	"github.com/me/wolf/internal/refconfig"
	"github.com/me/wolf/internal/store"
)

// Server is the wolf REST API server. It builds plans on request and hands
// them to the plan store; it never executes them.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	table     refconfig.Table
	store     store.Store // optional; nil disables plan persistence

	planLimiter *rate.Limiter // nil when plan builds are unlimited
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore sets the plan store used by the /plans endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithReferenceTable replaces the embedded reference table.
func WithReferenceTable(t refconfig.Table) Option {
	return func(s *Server) {
		s.table = t
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		table:     refconfig.DefaultTable(),

		planLimiter: newPlanLimiter(cfg.PlanRateLimit, cfg.PlanRateBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Reference configuration
		r.Route("/refs", func(r chi.Router) {
			r.Get("/", s.handleListBuilds)
			r.Get("/{build}/{seqType}", s.handleResolveRefs)
		})

		// Task catalogue
		r.Get("/tasks", s.handleListTasks)

		// Plans
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", s.handleListPlans)
			r.With(rateLimitMiddleware(s.planLimiter)).Post("/", s.handleCreatePlan)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPlan)
				r.Delete("/", s.handleDeletePlan)
				r.Get("/dot", s.handleGetPlanDOT)
			})
		})
	})
}
