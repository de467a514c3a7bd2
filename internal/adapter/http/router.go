package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/pdv/internal/adapter/http/handler"
	"github.com/iho/pdv/internal/adapter/http/middleware"
	"github.com/iho/pdv/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	PricingHandler     *handler.PricingHandler
	CashSessionHandler *handler.CashSessionHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	IdempotencyTTL     time.Duration
	RateLimiter        *middleware.RateLimiter
	Logger             zerolog.Logger
	// MetricsHandler serves /metrics; nil uses the default Prometheus registry.
	MetricsHandler http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL)
			r.Use(idempotencyMiddleware.Wrap)
		}

		r.Post("/pricing/recompute", cfg.PricingHandler.Recompute)
		r.Post("/currency/mask", cfg.PricingHandler.Mask)
		r.Post("/reconciliations", cfg.CashSessionHandler.Reconcile)

		r.Route("/cash-sessions/{id}", func(r chi.Router) {
			r.Get("/", cfg.CashSessionHandler.Get)
			r.Post("/preview", cfg.CashSessionHandler.Preview)
			r.Post("/close", cfg.CashSessionHandler.Close)
			r.Get("/closing", cfg.CashSessionHandler.GetClosing)
		})
	})

	return r
}
