// Package web exposes the admin batch surface over HTTP: login, CSV
// imports, assignment operations, and attendance marking. Every mutating
// route is a thin wrapper over the core ledgers and pipelines; the
// handlers parse, delegate, and render the batch outcome report.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cohort/internal/assignment"
	"cohort/internal/attendance"
	"cohort/internal/auth"
	"cohort/internal/config"
	"cohort/internal/identity"
	"cohort/internal/importer"
)

// IdentityStore is the identity surface the handlers need.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	ListByRole(ctx context.Context, role identity.Role) ([]identity.Identity, error)
}

// Server is the HTTP server for the admin surface.
type Server struct {
	router *chi.Mux
	server *http.Server

	cfg         *config.Config
	idents      IdentityStore
	imports     *importer.Service
	assignments *assignment.Ledger
	attendance  *attendance.Ledger
	tokens      *auth.Tokens
	limiter     *importer.Limiter
}

// NewServer wires the routes over the core services.
func NewServer(cfg *config.Config, idents IdentityStore, imports *importer.Service,
	assignments *assignment.Ledger, att *attendance.Ledger) *Server {

	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		idents:      idents,
		imports:     imports,
		assignments: assignments,
		attendance:  att,
		tokens:      auth.NewTokens(cfg.Auth.Issuer, cfg.Auth.SigningKey, cfg.Auth.TokenTTL),
		limiter:     importer.NewLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/api/login", s.handleLogin)

	// Mutating routes require a mentor or admin token; imports and
	// assignment changes are admin-only.
	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens, identity.RoleAdmin))

			r.Post("/import/{kind}", s.handleImport)
			r.Post("/mentors/{email}/assign", s.handleAssign)
			r.Post("/mentors/{email}/unassign", s.handleUnassign)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens, identity.RoleMentor, identity.RoleAdmin))

			r.Post("/attendance/{date}", s.handleBulkMark)
			r.Put("/attendance/{date}/{participant}", s.handleMark)
			r.Delete("/attendance/{date}/{participant}", s.handleUnmark)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens))

			r.Get("/participants/unassigned", s.handleUnassigned)
			r.Get("/mentors/{email}/participants", s.handleAssignedList)
			r.Get("/attendance/days", s.handleProgramDays)
			r.Get("/attendance/{date}", s.handleDayList)
			r.Get("/attendance-matrix", s.handleMatrix)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
