package server

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/appctx"
	"github.com/showcaselabs/showcase-go/internal/ratelimit"
)

// requestLoggerMiddleware attaches a request-scoped logger to the request
// context. Fields set here are inherited by the access log and by any
// handler that uses appctx.GetLogger(r.Context()).
//
// Must run AFTER chi's RequestID middleware so GetReqID returns a
// non-empty value.
func requestLoggerMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := base.With(
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path, // path only, no query string
				"client_ip", ratelimit.KeyFromRequest(r),
			)

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessLogMiddleware logs one line per completed request.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// rateLimitMiddleware gates an endpoint with a fixed-window limiter
// keyed by client IP. A cache backend failure fails open: the request
// proceeds and the failure is logged.
func (s *Server) rateLimitMiddleware(limiter *ratelimit.Limiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.KeyFromRequest(r)

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				s.logger.Warn("rate limit check failed",
					"endpoint", name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				s.logger.Warn("rate limit exceeded",
					"endpoint", name, "client_ip", key)
				w.Header().Set("Retry-After", "60")
				api.WriteTooManyRequests(w, "too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
