// Package api provides the HTTP API server for the KanbanFlow service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kanbanflow/kanbanflow/internal/api/handlers"
	"github.com/kanbanflow/kanbanflow/internal/api/health"
	"github.com/kanbanflow/kanbanflow/internal/api/middleware"
	"github.com/kanbanflow/kanbanflow/internal/audit"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/email"
	"github.com/kanbanflow/kanbanflow/internal/realtime"
	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	auth          *auth.Service
	access        *auth.AccessService
	recorder      *audit.Recorder
	email         *email.Service
	hub           *realtime.Hub
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, authSvc *auth.Service, hub *realtime.Hub, mail *email.Service, pinger health.Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:    st,
		auth:     authSvc,
		access:   auth.NewAccessService(st, cfg.InvitationTTL, logger),
		recorder: audit.NewRecorder(st, logger),
		email:    mail,
		hub:      hub,
		config:   cfg,
		logger:   logger,
	}

	s.healthChecker = health.NewChecker(pinger, Version)

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	authHandler := handlers.NewAuthHandler(s.store, s.auth, s.logger)
	boardHandler := handlers.NewBoardHandler(s.store, s.access, s.recorder, s.logger)
	listHandler := handlers.NewListHandler(s.store, s.access, s.recorder, s.logger)
	cardHandler := handlers.NewCardHandler(s.store, s.access, s.recorder, s.logger)
	commentHandler := handlers.NewCommentHandler(s.store, s.access, s.recorder, s.logger)
	invitationHandler := handlers.NewInvitationHandler(s.store, s.access, s.recorder, s.email, s.config.ClientOrigin, s.logger)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/boards/invitation/{token}/details", invitationHandler.Details)

		// Websocket upgrade authenticates its own ?token= parameter
		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}

		// Authenticated routes
		r.Group(func(r chi.Router) {
			authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
			r.Use(authMiddleware.Authenticate)

			r.Get("/auth/me", authHandler.Me)

			r.Route("/boards", func(r chi.Router) {
				r.Get("/", boardHandler.List)
				r.Post("/", boardHandler.Create)

				r.Route("/{boardID}", func(r chi.Router) {
					r.Get("/", boardHandler.Get)
					r.Put("/", boardHandler.Update)
					r.Delete("/", boardHandler.Delete)
					r.Get("/activity", boardHandler.Activity)
					r.Post("/lists", listHandler.Create)
					r.Post("/cards", cardHandler.Create)
					r.Post("/invite", invitationHandler.Invite)
				})

				r.Put("/lists/{listID}", listHandler.Update)
				r.Delete("/lists/{listID}", listHandler.Delete)

				r.Put("/cards/{cardID}", cardHandler.Update)
				r.Put("/cards/{cardID}/move", cardHandler.Move)
				r.Delete("/cards/{cardID}", cardHandler.Delete)
				r.Post("/cards/{cardID}/comments", commentHandler.Create)

				r.Post("/invitation/{token}/accept", invitationHandler.Accept)
				r.Post("/invitation/{token}/reject", invitationHandler.Reject)
			})
		})
	})

	s.router = r
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
