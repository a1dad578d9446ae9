// Package server is the composition root: it builds the dependency graph,
// mounts the routes and runs the HTTP server.
//
// Wiring:
//
//	config → TokenService, PasswordService, GoogleProvider (optional)
//	store (sqlite | postgres) → AuthService → AuthHandler
//	TokenService + store → Guard (protects /api/auth/me)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/handler"
	"github.com/sakif/recipe-api/internal/middleware"
	"github.com/sakif/recipe-api/internal/repository"
	"github.com/sakif/recipe-api/internal/service"
)

// Server represents the HTTP server and all its dependencies.
// The store is owned by the caller, which closes it after Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
}

// New wires services, handlers and routes on top of users.
//
// A bad JWT configuration is returned as an apperror.ErrConfiguration error;
// the server never starts without a usable signing key.
func New(cfg *config.Config, users repository.UserRepository, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.ExpiresIn,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost)

	// Interfaces stay nil (not a typed nil pointer) when Google is off.
	var (
		verifier   service.GoogleVerifier
		redirector handler.GoogleRedirector
	)
	if cfg.Google.Enabled() {
		google := auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		verifier, redirector = google, google
	}

	authService := service.NewAuthService(users, tokens, passwords, verifier, logger)
	authHandler := handler.NewAuthHandler(authService, redirector, cfg.FrontendURL, logger)
	guard := auth.NewGuard(tokens, users, handler.WriteError, logger)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(authHandler, guard, authService.GoogleEnabled())
	return s, nil
}

// setupRoutes configures middleware and routes.
//
//	GET  /healthz                    → liveness probe
//	POST /api/auth/register          → create account
//	POST /api/auth/login             → password login
//	GET  /api/auth/me                → current user (guarded)
//	POST /api/auth/google            → ID-token sign-in      (Google enabled)
//	GET  /api/auth/google/login      → start redirect flow   (Google enabled)
//	GET  /api/auth/google/callback   → finish redirect flow  (Google enabled)
//
// Middleware runs in the order it is added. The recoverer sits inside the
// logger so a recovered panic is still logged as a 500.
func (s *Server) setupRoutes(h *handler.AuthHandler, guard *auth.Guard, googleEnabled bool) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Recoverer(s.logger, handler.WriteError))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{chimiddleware.RequestIDHeader},
		MaxAge:         300,
	}))
	s.router.Use(chimiddleware.Heartbeat("/healthz"))

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
		r.With(guard.RequireAuth).Get("/me", h.HandleMe)

		if googleEnabled {
			r.Post("/google", h.HandleGoogle)
			r.Get("/google/login", h.HandleGoogleLogin)
			r.Get("/google/callback", h.HandleGoogleCallback)
		}
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.Database.Driver),
			slog.Bool("google", s.config.Google.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
