// Package http provides the HTTP transport layer for the AniVouch API.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/anivouch/anivouch/internal/apperrors"
	"github.com/anivouch/anivouch/internal/config"
	"github.com/anivouch/anivouch/internal/domain"
	"github.com/anivouch/anivouch/internal/metrics"
	"github.com/anivouch/anivouch/internal/ratelimit"
	"github.com/anivouch/anivouch/internal/service"
)

// Server is the HTTP server for the AniVouch API.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux

	authService         *service.AuthService
	userService         *service.UserService
	verificationService *service.VerificationService
	animeService        *service.AnimeService

	normalizer  *apperrors.Normalizer
	authLimiter *ratelimit.Limiter
	apiLimiter  *ratelimit.Limiter
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	logger      *zap.Logger

	frontendURL   string
	secureCookies bool
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	authService *service.AuthService,
	userService *service.UserService,
	verificationService *service.VerificationService,
	animeService *service.AnimeService,
	normalizer *apperrors.Normalizer,
	authLimiter, apiLimiter *ratelimit.Limiter,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:              chi.NewRouter(),
		authService:         authService,
		userService:         userService,
		verificationService: verificationService,
		animeService:        animeService,
		normalizer:          normalizer,
		authLimiter:         authLimiter,
		apiLimiter:          apiLimiter,
		metrics:             m,
		gatherer:            gatherer,
		logger:              logger,
		frontendURL:         cfg.FrontendURL,
		secureCookies:       cfg.IsProduction(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	// Health check and Prometheus scrape endpoint
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		// Auth routes get the stricter limiter; credential endpoints are
		// the ones worth brute-forcing.
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.rateLimit(s.authLimiter, "auth"))

			r.Post("/sign-up", s.handleSignUp)
			r.Post("/sign-in/email", s.handleSignInEmail)
			r.Post("/sign-in/username", s.handleSignInUsername)
			r.Post("/sign-out", s.handleSignOut)
			r.Post("/refresh", s.handleRefresh)

			r.Get("/google", s.handleGoogleStart)
			r.Get("/google/callback", s.handleGoogleCallback)

			r.Get("/verify-email", s.handleVerifyEmail)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Post("/send-verification-email", s.handleSendVerificationEmail)
				r.Post("/send-verification-otp", s.handleSendVerificationOTP)
				r.Post("/reset-password", s.handleResetPassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit(s.apiLimiter, "api"))

			r.Route("/user", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)
					r.Get("/me", s.handleMe)
					r.Post("/me/username", s.handleUpdateUsername)
				})
				r.Get("/{identifier}", s.handleGetUser)
			})

			r.Get("/anime/search", s.handleAnimeSearch)
		})
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError is the single funnel for handler failures: one normalizer call,
// one log record, one response.
func (s *Server) writeError(w http.ResponseWriter, err error, context map[string]any) {
	resp := s.normalizer.Normalize(err, context)
	s.writeJSON(w, resp.Status, resp.Body)
}

func (s *Server) readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// The route pattern ("/api/user/{identifier}") keeps label
		// cardinality bounded where the raw path would not.
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		s.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
