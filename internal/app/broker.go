// Package app wires the infrastructure shared by the entries and balances
// binaries.
package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/infrastructure/config"
	"github.com/iho/cashflow/internal/infrastructure/messaging"
	"github.com/iho/cashflow/internal/infrastructure/rabbitmq"
	"github.com/iho/cashflow/internal/infrastructure/redis"
)

// Broker is the selected message broker.
type Broker struct {
	Transport messaging.Transport
	Source    messaging.Source
	// System names the broker in messaging.system span attributes.
	System string
	Check  func(ctx context.Context) error
	Close  func() error
}

// OpenBroker connects to the broker selected by cfg.BrokerKind. The redis
// broker reuses client; consumer names this process in its consumer group.
func OpenBroker(cfg *config.Config, client *goredis.Client, consumer string, logger *zerolog.Logger) (*Broker, error) {
	switch cfg.BrokerKind {
	case config.BrokerRabbitMQ:
		conn, err := rabbitmq.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, err
		}

		transport := rabbitmq.NewTransport(rabbitmq.Config{
			Open:        conn.Channel,
			ConsumerTag: consumer,
			Prefetch:    cfg.ConsumerPrefetch,
		})

		return &Broker{
			Transport: transport,
			Source:    transport,
			System:    "rabbitmq",
			Check:     conn.Ping,
			Close: func() error {
				transport.Close()
				return conn.Close()
			},
		}, nil

	case config.BrokerRedis:
		if client == nil {
			return nil, fmt.Errorf("broker %q needs a redis client", cfg.BrokerKind)
		}

		transport := redis.NewStreamTransport(client, redis.StreamConfig{
			Logger:        logger,
			Group:         cfg.ConsumerGroup,
			Consumer:      consumer,
			BatchSize:     int64(cfg.ConsumerPrefetch),
			BlockDuration: cfg.StreamBlock,
		})

		return &Broker{
			Transport: transport,
			Source:    transport,
			System:    "redis",
			Check:     redis.Ping(client),
			Close:     func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported broker %q", cfg.BrokerKind)
	}
}
