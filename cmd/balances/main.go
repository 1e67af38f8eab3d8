// Command balances runs the balances service: the consumer projecting
// entry events into daily balances and the HTTP balance query API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/cashflow/internal/adapter/http"
	"github.com/iho/cashflow/internal/adapter/http/handler"
	"github.com/iho/cashflow/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/cashflow/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/cashflow/internal/adapter/repository/redis"
	"github.com/iho/cashflow/internal/app"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/config"
	"github.com/iho/cashflow/internal/infrastructure/messaging"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
	redisInfra "github.com/iho/cashflow/internal/infrastructure/redis"
	"github.com/iho/cashflow/internal/usecase"
)

const serviceName = "cashflow-balances"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("balances service failed")
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
	cache := redisRepo.NewCache(redisClient, redisRepo.WithKeyPrefix(cfg.CacheKeyPrefix))

	projectionCfg := usecase.ProjectionConfig{
		TxManager:   postgresRepo.NewTxManager(pool, postgresRepo.WithIsolation(pgx.RepeatableRead)),
		BalanceRepo: postgresRepo.NewBalanceRepository(pool),
		IDGen:       postgresRepo.NewULIDGenerator(),
		Retrier:     postgresRepo.NewRetrier(&logger),
		Cache:       cache,
		Metrics:     m,
	}
	if cfg.ProjectionDedup {
		projectionCfg.ProcessedRepo = postgresRepo.NewProcessedEventRepository()
	}
	projection := usecase.NewBalanceProjection(projectionCfg)

	executor := messaging.NewExecutor(tp.Tracer())
	executor.Register(domain.EventTypeEntryCreated, messaging.Singleton(messaging.Typed(projection.Handle)))

	consumer := messaging.NewConsumer(messaging.ConsumerConfig{
		Source:    broker.Source,
		Executor:  executor,
		Decoders:  app.Decoders(),
		Tracer:    tp.Tracer(),
		Metrics:   m,
		Logger:    &logger,
		Queue:     cfg.QueueName,
		EventType: domain.EventTypeEntryCreated,
	})

	balanceUC := usecase.NewBalanceUseCase(projectionCfg.BalanceRepo, cache, cfg.BalanceCacheTTL)

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)
	}

	router := httpAdapter.NewBalancesRouter(httpAdapter.BalancesRouterConfig{
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
		BalanceHandler: handler.NewBalanceHandler(balanceUC),
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped")
			stop()
		}
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
	logger.Info().Msg("balances service stopped")

	return serveErr
}
