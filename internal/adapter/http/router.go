package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/agencyledger/internal/adapter/http/handler"
	"github.com/iho/agencyledger/internal/adapter/http/middleware"
	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
// Optional parts are skipped when nil.
type RouterConfig struct {
	ReconciliationHandler *handler.ReconciliationHandler
	PaymentHandler        *handler.PaymentHandler
	HealthHandler         *handler.HealthHandler
	Idempotency           *middleware.IdempotencyMiddleware
	RateLimiter           *middleware.RateLimiter
	// TokenVerifier enables bearer authentication and per-route permissions.
	TokenVerifier middleware.TokenVerifier
	Metrics       *metrics.Metrics
	// Gatherer serves /metrics; defaults to the global registry.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var authFailures *prometheus.CounterVec
	if cfg.Metrics != nil {
		authFailures = cfg.Metrics.AuthFailures
	}
	allow := func(resource domain.Resource, action domain.Action) func(http.Handler) http.Handler {
		if cfg.TokenVerifier == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RequirePermission(resource, action)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			r.Use(middleware.AuthMiddleware(cfg.TokenVerifier, authFailures))
		}

		rh := cfg.ReconciliationHandler
		r.With(allow(domain.ResourceOutstanding, domain.ActionRead)).Get("/outstanding", rh.ListOutstanding)

		r.Route("/entities/{role}/{id}", func(r chi.Router) {
			r.Use(allow(domain.ResourceLedger, domain.ActionRead))
			r.Get("/ledger", rh.GetLedger)
			r.Get("/trend", rh.GetTrend)
		})

		r.With(allow(domain.ResourceBreakdown, domain.ActionRead)).Get("/residences/{id}/breakdown", rh.GetBreakdown)

		// Idempotency runs after auth so keys are scoped to the caller.
		pay := r.With(allow(domain.ResourcePayment, domain.ActionCreate))
		if cfg.Idempotency != nil {
			pay = pay.With(cfg.Idempotency.Wrap)
		}
		pay.Post("/payments", cfg.PaymentHandler.Record)
	})

	return r
}
