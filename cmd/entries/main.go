// Command entries runs the entries service: the HTTP command API, the
// transactional outbox and its dispatcher.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/cashflow/internal/adapter/http"
	"github.com/iho/cashflow/internal/adapter/http/handler"
	"github.com/iho/cashflow/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/cashflow/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/cashflow/internal/adapter/repository/redis"
	"github.com/iho/cashflow/internal/app"
	"github.com/iho/cashflow/internal/infrastructure/config"
	"github.com/iho/cashflow/internal/infrastructure/messaging"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
	"github.com/iho/cashflow/internal/infrastructure/outbox"
	redisInfra "github.com/iho/cashflow/internal/infrastructure/redis"
	"github.com/iho/cashflow/internal/usecase"
)

const serviceName = "cashflow-entries"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("entries service failed")
	}
}

func run(cfg *config.Config) error {
	logger := app.NewLogger(cfg, serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := app.NewTracing(cfg, serviceName)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	pool, err := app.OpenPostgres(ctx, cfg, serviceName, &logger)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(ctx, cfg, &logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	broker, err := app.OpenBroker(cfg, redisClient, app.ConsumerName(serviceName), &logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer broker.Close()
	logger.Info().Str("broker", broker.System).Msg("connected to broker")

	m := metrics.New(prometheus.DefaultRegisterer)

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier(&logger)

	// Use cases
	entryUC := usecase.NewEntryUseCase(txManager, entryRepo, outboxRepo, idGen, retrier).
		WithMetrics(m).
		WithTracer(tp.Tracer())
	outboxUC := usecase.NewOutboxUseCase(outboxRepo)

	dispatcher := outbox.NewDispatcher(outbox.Config{
		OutboxRepo: outboxRepo,
		Publisher: messaging.NewPublisher(messaging.PublisherConfig{
			Transport: broker.Transport,
			Tracer:    tp.Tracer(),
			System:    broker.System,
		}),
		Decoders:  app.Decoders(),
		Metrics:   m,
		Logger:    &logger,
		Queue:     cfg.QueueName,
		Owner:     app.ConsumerName(serviceName),
		BatchSize: cfg.OutboxBatchSize,
		Interval:  cfg.OutboxPollInterval,
		ClaimTTL:  cfg.OutboxClaimTTL,

		PublishTimeout: cfg.OutboxPublishTimeout,
	})

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)
	}

	router := httpAdapter.NewEntriesRouter(httpAdapter.EntriesRouterConfig{
		CommonConfig: httpAdapter.CommonConfig{
			Logger: logger,
			HealthHandler: handler.NewHealthHandler(map[string]handler.Checker{
				"postgres": pool.Ping,
				"redis":    redisInfra.Ping(redisClient),
				"broker":   broker.Check,
			}),
			Metrics:     m,
			RateLimiter: rateLimiter,
		},
		EntryHandler:     handler.NewEntryHandler(entryUC),
		OutboxHandler:    handler.NewOutboxHandler(outboxUC),
		IdempotencyStore: redisRepo.NewIdempotencyStore(redisClient),
		IdempotencyTTL:   cfg.IdempotencyTTL,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()

	if rateLimiter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rateLimiter.RunCleanup(ctx, cfg.HTTPIdleTimeout)
		}()
	}

	server := app.NewHTTPServer(cfg, router)
	serveErr := app.ListenAndServe(ctx, server, cfg.HTTPShutdownTimeout, &logger)
	stop()

	wg.Wait()
	logger.Info().Msg("entries service stopped")

	return serveErr
}
