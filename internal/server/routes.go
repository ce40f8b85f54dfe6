package server

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/identity"
	"github.com/showcaselabs/showcase-go/internal/ratelimit"
)

// setupRoutes creates the chi router with all endpoints mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging)
	// RequestID must come first so GetReqID works in requestLoggerMiddleware.
	// accessLogMiddleware wraps the response and Recoverer writes through
	// the wrapper, so the access log captures correct status for panics.
	r.Use(middleware.RequestID)
	r.Use(requestLoggerMiddleware(s.logger))
	r.Use(s.accessLogMiddleware)
	r.Use(middleware.Recoverer)

	requireAuth := identity.RequireAuth(s.tokenIssuer)

	loginLimiter := ratelimit.New(s.deps.Cache, &ratelimit.Config{
		RequestsPerWindow: s.cfg.RateLimit.LoginPerMinute,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:login:",
	})
	joinLimiter := ratelimit.New(s.deps.Cache, &ratelimit.Config{
		RequestsPerWindow: s.cfg.RateLimit.JoinPerMinute,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:join:",
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Health endpoint (public)
		r.Get("/healthz", api.HealthHandler)

		// Auth endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.authHandler.HandleRegister)
			r.With(s.rateLimitMiddleware(loginLimiter, "login")).
				Post("/login", s.authHandler.HandleLogin)
			r.With(requireAuth).Get("/me", s.authHandler.HandleMe)
		})

		// Invite coordination endpoints (public; see rate limit on join)
		r.Route("/signaling", func(r chi.Router) {
			r.Post("/invite", s.signalingHandler.HandleRegisterInvite)
			r.Get("/invite", s.signalingHandler.HandleGetInvite)
			r.Get("/share_link", s.signalingHandler.HandleGetShareLink)
			r.Post("/share_link", s.signalingHandler.HandlePromoteShareLink)
			r.Get("/guest_count", s.signalingHandler.HandleGetGuestCount)
			r.With(s.rateLimitMiddleware(joinLimiter, "guest_join")).
				Post("/guest_join", s.signalingHandler.HandleJoin)
			r.Get("/clear", s.signalingHandler.HandleClear)
		})

		// Chat endpoints (public)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/", s.chatHandler.HandleSendMessage)
			r.Get("/history", s.chatHandler.HandleGetHistory)
		})

		// Project endpoints; mutations are admin-only, comments need auth
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.projectsHandler.HandleList)
			r.With(requireAuth, identity.RequireAdmin).
				Post("/", s.projectsHandler.HandleCreate)
			r.Get("/{projectID}", s.projectsHandler.HandleGet)
			r.With(requireAuth, identity.RequireAdmin).
				Put("/{projectID}", s.projectsHandler.HandleUpdate)
			r.With(requireAuth, identity.RequireAdmin).
				Delete("/{projectID}", s.projectsHandler.HandleDelete)
			r.Get("/{projectID}/comments", s.projectsHandler.HandleListComments)
			r.With(requireAuth).
				Post("/{projectID}/comments", s.projectsHandler.HandleCreateComment)
		})

		// Analytics: recording is public, stats are admin-only
		r.Route("/analytics", func(r chi.Router) {
			r.Post("/view", s.analyticsHandler.HandleRecordView)
			r.With(requireAuth, identity.RequireAdmin).
				Get("/stats", s.analyticsHandler.HandleStats)
		})
	})

	return r
}
