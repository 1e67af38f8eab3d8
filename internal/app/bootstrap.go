package app

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/cashflow/internal/infrastructure/config"
	"github.com/iho/cashflow/internal/infrastructure/logger"
	"github.com/iho/cashflow/internal/infrastructure/postgres"
	"github.com/iho/cashflow/internal/infrastructure/redis"
	"github.com/iho/cashflow/internal/infrastructure/tracing"
)

// NewLogger builds the service logger from cfg and installs it as the
// global logger.
func NewLogger(cfg *config.Config, service string) zerolog.Logger {
	l := logger.New(logger.Config{
		Output:  os.Stdout,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: service,
	})
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

// NewTracing installs the tracer provider of service.
func NewTracing(cfg *config.Config, service string) (*tracing.Provider, error) {
	return tracing.NewProvider(tracing.Config{
		ServiceName: service,
		Exporter:    cfg.TracingExporter,
		Enabled:     cfg.TracingEnabled,
	})
}

// OpenPostgres connects to the service database as service and applies the
// migrations under cfg.MigrationsPath, when set.
func OpenPostgres(ctx context.Context, cfg *config.Config, service string, l *zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.MigrationsPath != "" {
		if _, err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, l); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		ApplicationName: service,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		ConnectTimeout:  cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, err
	}
	l.Info().Msg("connected to postgres")

	return pool, nil
}

// OpenRedis connects to Redis.
func OpenRedis(ctx context.Context, cfg *config.Config, l *zerolog.Logger) (*goredis.Client, error) {
	client, err := redis.NewClient(ctx, redis.ClientConfig{
		URL:         cfg.RedisURL,
		PoolSize:    cfg.RedisPoolSize,
		DialTimeout: cfg.RedisDialTimeout,
	})
	if err != nil {
		return nil, err
	}
	l.Info().Msg("connected to redis")

	return client, nil
}

// ConsumerName identifies this process to the broker.
func ConsumerName(service string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return service
	}
	return service + "-" + host
}
