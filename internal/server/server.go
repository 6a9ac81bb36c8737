// Package server is the composition root: it opens the store, builds the
// services and handlers, and mounts them on one chi router.
//
//	main.go → server.New:  sqlstore.Store → services → handlers → routes
//	at runtime:            handler → service → repository interface → SQL
//
// Keeping this out of main.go lets tests build the whole application over
// an in-memory database and drive it with httptest.
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

	"github.com/sakif/challenge-hub/internal/auth"
	"github.com/sakif/challenge-hub/internal/handler"
	"github.com/sakif/challenge-hub/internal/metrics"
	"github.com/sakif/challenge-hub/internal/middleware"
	"github.com/sakif/challenge-hub/internal/repository/sqlstore"
	"github.com/sakif/challenge-hub/internal/service"
)

type Config struct {
	Port     int
	DBDriver string
	DBDSN    string

	// JWTSecret enables bearer tokens and POST /auth/token. Empty disables both.
	JWTSecret string

	// DefaultUserID is the caller attributed to requests that carry no token.
	// 0 means such requests are anonymous.
	DefaultUserID int64
}

// Server owns the store and closes it when Start returns.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	store   *sqlstore.Store
	metrics *metrics.Metrics
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	m := metrics.New()

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:  cfg.DBDriver,
		DSN:     cfg.DBDSN,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	m.RegisterDBStats(store.DB())

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: m,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store exposes the underlying store, mainly for tests and seeding.
func (s *Server) Store() *sqlstore.Store {
	return s.store
}

// Close releases the store. Start calls it on return; call it directly only
// when Start is never called.
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes mounts everything.
//
//	GET  /health, /metrics
//	/api/v1/auth/token, /auth/logout
//	/api/v1/users, /categories, /difficulties, /tags
//	/api/v1/challenges, /conversations
//
// Middleware order: RequestID, RealIP, Recoverer, Logger, Metrics, then the
// caller identity on /api/v1 only.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))

	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set, bearer tokens are disabled")
	}
	passwords := auth.NewPasswordService()

	userService := service.NewUserService(s.store, passwords, s.logger)
	catalogService := service.NewCatalogService(s.store, s.logger)
	challengeService := service.NewChallengeService(s.store, s.logger)
	conversationService := service.NewConversationService(s.store, s.logger)
	authService := service.NewAuthService(s.store, tokens, passwords, s.logger)

	userHandler := handler.NewUserHandler(userService, s.logger)
	catalogHandler := handler.NewCatalogHandler(catalogService, s.logger)
	challengeHandler := handler.NewChallengeHandler(challengeService, s.logger)
	conversationHandler := handler.NewConversationHandler(conversationService, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Identity(auth.IdentityConfig{
			Tokens:        tokens,
			DefaultUserID: s.config.DefaultUserID,
		}))

		authHandler.RegisterRoutes(r)
		catalogHandler.RegisterRoutes(r)
		r.Route("/users", func(r chi.Router) {
			userHandler.RegisterRoutes(r, auth.RequireIdentity)
		})
		r.Route("/challenges", challengeHandler.RegisterRoutes)
		r.Route("/conversations", func(r chi.Router) {
			conversationHandler.RegisterRoutes(r, auth.RequireIdentity)
		})
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.store.Close()

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
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("driver", s.config.DBDriver),
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
