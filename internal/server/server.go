// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/showcaselabs/showcase-go/internal/analytics"
	"github.com/showcaselabs/showcase-go/internal/cache"
	cachememory "github.com/showcaselabs/showcase-go/internal/cache/memory"
	"github.com/showcaselabs/showcase-go/internal/chat"
	"github.com/showcaselabs/showcase-go/internal/config"
	"github.com/showcaselabs/showcase-go/internal/identity"
	"github.com/showcaselabs/showcase-go/internal/inference"
	"github.com/showcaselabs/showcase-go/internal/projects"
	"github.com/showcaselabs/showcase-go/internal/signaling"
	"github.com/showcaselabs/showcase-go/internal/store"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: persistence
	Sessions  store.SessionStore
	Users     store.UserStore
	Projects  store.ProjectStore
	Analytics store.AnalyticsStore

	// Required: reply generation for chat
	Completer inference.Completer

	// Optional: cache for rate limiting and stats snapshots.
	// Nil falls back to a process-local in-memory cache.
	Cache cache.CacheWithCounter
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	deps       *Deps

	coordinator *signaling.Coordinator

	authHandler      *identity.Handler
	tokenIssuer      *identity.TokenIssuer
	signalingHandler *signaling.Handler
	chatHandler      *chat.Handler
	projectsHandler  *projects.Handler
	analyticsHandler *analytics.Handler

	// challengeServer is the HTTP listener for ACME HTTP-01 challenges and
	// HTTPS redirects. Nil except in ACME mode.
	challengeServer *http.Server
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	if deps.Cache == nil {
		deps.Cache = cachememory.New(15*time.Minute, 5*time.Minute)
	}

	userAuth := identity.NewUserAuth(cfg.Auth.BcryptCost)
	tokenIssuer := identity.NewTokenIssuer(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
	)

	coordinator := signaling.NewCoordinator()

	orchestrator := chat.NewOrchestrator(
		deps.Sessions,
		deps.Completer,
		time.Duration(cfg.Inference.TimeoutMS)*time.Millisecond,
		cfg.Inference.FallbackReply,
		logger,
	)

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		deps:        deps,
		coordinator: coordinator,

		authHandler:      identity.NewHandler(deps.Users, userAuth, tokenIssuer),
		tokenIssuer:      tokenIssuer,
		signalingHandler: signaling.NewHandler(coordinator),
		chatHandler:      chat.NewHandler(orchestrator),
		projectsHandler:  projects.NewHandler(deps.Projects),
		analyticsHandler: analytics.NewHandler(deps.Analytics, deps.Cache),
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"external_origin", s.cfg.ExternalOrigin,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off":
		return s.httpServer.ListenAndServe()

	case "acme":
		return s.startACME()

	case "static", "selfsigned":
		tlsManager := NewTLSManager(&s.cfg.TLS, s.logger)
		tlsConfig, err := tlsManager.GetTLSConfig(extractHostname(s.cfg.ExternalOrigin))
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		if tlsConfig == nil {
			return fmt.Errorf("TLS config is nil for mode %s", s.cfg.TLS.Mode)
		}

		s.httpServer.TLSConfig = tlsConfig
		s.logger.Info("starting server with TLS", "mode", s.cfg.TLS.Mode)

		// Certs live in TLSConfig.Certificates; empty file arguments use them.
		return s.httpServer.ListenAndServeTLS("", "")

	default:
		return fmt.Errorf("%w: %s", ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// In ACME mode, stop accepting challenges before tearing down HTTPS.
	var challengeErr error
	if s.challengeServer != nil {
		challengeErr = s.challengeServer.Shutdown(ctx)
	}

	return errors.Join(challengeErr, s.httpServer.Shutdown(ctx))
}

// extractHostname extracts just the hostname from an external origin URL.
// For TLS certificate generation, we need the hostname without port.
func extractHostname(externalOrigin string) string {
	host := externalOrigin
	for _, scheme := range []string{"https://", "http://"} {
		if len(host) > len(scheme) && host[:len(scheme)] == scheme {
			host = host[len(scheme):]
			break
		}
	}
	if len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	// Remove port if present
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
		if host[i] == ']' {
			// IPv6 address like [::1]:8080
			break
		}
	}
	return host
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.Sessions == nil {
		return fmt.Errorf("%w: Sessions", ErrMissingDep)
	}
	if deps.Users == nil {
		return fmt.Errorf("%w: Users", ErrMissingDep)
	}
	if deps.Projects == nil {
		return fmt.Errorf("%w: Projects", ErrMissingDep)
	}
	if deps.Analytics == nil {
		return fmt.Errorf("%w: Analytics", ErrMissingDep)
	}
	if deps.Completer == nil {
		return fmt.Errorf("%w: Completer", ErrMissingDep)
	}
	return nil
}
