package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ebogdum/dslockd/auth"
	"github.com/ebogdum/dslockd/config"
	"github.com/ebogdum/dslockd/core"
	"github.com/ebogdum/dslockd/metrics"
	"github.com/ebogdum/dslockd/server/handlers"
	authMiddleware "github.com/ebogdum/dslockd/server/middleware"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	engine *core.Engine,
	authenticator auth.Authenticator,
	authorizer auth.Authorizer,
	serverConfig *config.ServerConfig,
	logger *zap.Logger,
) chi.Router {
	// Initialize metrics
	metrics.RegisterMetrics()

	r := chi.NewRouter()

	// Basic middleware
	r.Use(authMiddleware.V1RequestIDMiddleware())
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(authMiddleware.V1SecurityHeaders())

	// Custom logging and metrics middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			// Record metrics
			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				r.URL.Path,
				http.StatusText(ww.Status()),
			).Inc()

			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method,
				r.URL.Path,
			).Observe(duration.Seconds())

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", duration),
				zap.String("remote_addr", r.RemoteAddr))
		})
	})

	// Health check endpoint (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.Error("Failed to write health check response", zap.Error(err))
		}
	})

	// Metrics endpoint (no auth required)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes with authentication
	r.Route("/v1", func(r chi.Router) {
		// Apply authentication middleware to all API routes
		r.Use(authMiddleware.V1AuthMiddleware(authenticator, logger))

		// Session lifecycle
		r.Route("/sessions", func(r chi.Router) {
			// Rate limit session creation; everything else is bound to an
			// existing session anyway.
			sessionRateLimiter := rate.NewLimiter(
				rate.Limit(serverConfig.SessionRateLimit),
				serverConfig.SessionRateBurst)
			r.With(authMiddleware.V1RateLimitMiddleware(sessionRateLimiter, logger)).
				Post("/", handlers.V1CreateSession(engine, logger))

			r.Get("/", handlers.V1ListSessions(engine, logger))
			r.Delete("/{id}", handlers.V1CloseSession(engine, logger))
		})

		// Datastore lock operations
		r.Route("/datastores", func(r chi.Router) {
			r.Get("/", handlers.V1ListDatastores(engine, logger))
			r.Get("/{name}", handlers.V1GetDatastore(engine, logger))
			r.Post("/{name}/lock", handlers.V1LockDatastore(engine, authorizer, logger))
			r.Post("/{name}/unlock", handlers.V1UnlockDatastore(engine, authorizer, logger))
		})

		// Audit trail
		r.Get("/audit", handlers.V1ListAuditEvents(engine, logger))

		// Lock event stream
		r.Get("/watch", handlers.V1WatchLocks(engine, logger))
	})

	logger.Info("HTTP router configured successfully")

	return r
}
