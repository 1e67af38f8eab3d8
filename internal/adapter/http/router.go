package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/adapter/http/handler"
	"github.com/iho/cashflow/internal/adapter/http/middleware"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
	"github.com/iho/cashflow/internal/usecase"
)

// CommonConfig holds what both services share.
type CommonConfig struct {
	Logger        zerolog.Logger
	HealthHandler *handler.HealthHandler
	Metrics       *metrics.Metrics
	// MetricsHandler serves /metrics. Nil means promhttp.Handler().
	MetricsHandler http.Handler
	RateLimiter    *middleware.RateLimiter
}

// EntriesRouterConfig holds dependencies for the entries service router.
type EntriesRouterConfig struct {
	CommonConfig

	EntryHandler     *handler.EntryHandler
	OutboxHandler    *handler.OutboxHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
}

// BalancesRouterConfig holds dependencies for the balances service router.
type BalancesRouterConfig struct {
	CommonConfig

	BalanceHandler *handler.BalanceHandler
}

// NewEntriesRouter creates the HTTP router of the entries service.
func NewEntriesRouter(cfg EntriesRouterConfig) http.Handler {
	r := newBaseRouter(cfg.CommonConfig)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		r.Route("/entries", func(r chi.Router) {
			create := http.Handler(http.HandlerFunc(cfg.EntryHandler.Create))
			if cfg.IdempotencyStore != nil {
				create = middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap(create)
			}

			r.Method(http.MethodPost, "/", create)
			r.Get("/{id}", cfg.EntryHandler.Get)
		})

		r.Route("/outbox", func(r chi.Router) {
			r.Get("/pending", cfg.OutboxHandler.ListPending)
			r.Post("/{id}/requeue", cfg.OutboxHandler.Requeue)
			r.Delete("/processed", cfg.OutboxHandler.Purge)
		})
	})

	return r
}

// NewBalancesRouter creates the HTTP router of the balances service.
func NewBalancesRouter(cfg BalancesRouterConfig) http.Handler {
	r := newBaseRouter(cfg.CommonConfig)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		r.Get("/balances", cfg.BalanceHandler.Get)
	})

	return r
}

func newBaseRouter(cfg CommonConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CorrelationID(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	return r
}
