package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/cashflow/internal/infrastructure/messaging"
)

// Stream entry fields
const (
	fieldID     = "id"
	fieldType   = "type"
	fieldBody   = "body"
	headerField = "h:"
)

// StreamConfig configures a StreamTransport.
type StreamConfig struct {
	Logger        *zerolog.Logger
	Group         string
	Consumer      string
	BatchSize     int64
	BlockDuration time.Duration
	MaxLen        int64 // approximate stream cap, 0 keeps everything
}

// StreamTransport carries messages over Redis Streams, one stream per queue,
// read through a consumer group.
type StreamTransport struct {
	client        *redis.Client
	logger        zerolog.Logger
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
	maxLen        int64
}

// NewStreamTransport creates a StreamTransport.
func NewStreamTransport(client *redis.Client, cfg StreamConfig) *StreamTransport {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.Logger
	}

	return &StreamTransport{
		client:        client,
		logger:        cfg.Logger.With().Str("component", "redis_stream").Logger(),
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		batchSize:     cfg.BatchSize,
		blockDuration: cfg.BlockDuration,
		maxLen:        cfg.MaxLen,
	}
}

// Send appends msg to the stream named queue.
func (t *StreamTransport) Send(ctx context.Context, queue string, msg messaging.Message) error {
	values := map[string]any{
		fieldID:   msg.ID,
		fieldType: msg.Type,
		fieldBody: msg.Body,
	}
	for k, v := range msg.Headers {
		values[headerField+k] = v
	}

	args := &redis.XAddArgs{
		Stream: queue,
		Values: values,
	}
	if t.maxLen > 0 {
		args.MaxLen = t.maxLen
		args.Approx = true
	}

	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	return nil
}

// EnsureGroup creates the consumer group and the stream if missing.
func (t *StreamTransport) EnsureGroup(ctx context.Context, queue string) error {
	err := t.client.XGroupCreateMkStream(ctx, queue, t.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Consume reads entries for the group until ctx is cancelled. It first
// redelivers entries already handed to this consumer but never acknowledged,
// such as ones read just before a previous Consume was cancelled, and then
// switches to new entries. Entries are acknowledged with XACK through
// Delivery.Ack.
func (t *StreamTransport) Consume(ctx context.Context, queue string) (<-chan messaging.Delivery, error) {
	if err := t.EnsureGroup(ctx, queue); err != nil {
		return nil, err
	}

	out := make(chan messaging.Delivery)
	go func() {
		defer close(out)

		// "0" walks this consumer's pending list, ">" reads new entries.
		cursor := "0"
		for ctx.Err() == nil {
			args := &redis.XReadGroupArgs{
				Group:    t.group,
				Consumer: t.consumer,
				Streams:  []string{queue, cursor},
				Count:    t.batchSize,
				Block:    t.blockDuration,
			}
			if cursor != ">" {
				args.Block = -1
			}
			streams, err := t.client.XReadGroup(ctx, args).Result()

			if errors.Is(err, redis.Nil) {
				cursor = ">"
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.logger.Error().Err(err).Str("stream", queue).Msg("failed to read from stream")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			delivered := 0
			for _, stream := range streams {
				for _, m := range stream.Messages {
					select {
					case out <- t.toDelivery(queue, m):
					case <-ctx.Done():
						return
					}
					delivered++
					if cursor != ">" {
						cursor = m.ID
					}
				}
			}
			switch {
			case cursor == ">":
			case delivered == 0:
				cursor = ">"
			default:
				t.logger.Info().Int("count", delivered).Str("stream", queue).Msg("redelivered unacknowledged stream entries")
			}
		}
	}()

	return out, nil
}

func (t *StreamTransport) toDelivery(queue string, m redis.XMessage) messaging.Delivery {
	msg := messaging.Message{Headers: messaging.Headers{}}

	for k, v := range m.Values {
		s, _ := v.(string)
		switch {
		case k == fieldID:
			msg.ID = s
		case k == fieldType:
			msg.Type = s
		case k == fieldBody:
			msg.Body = []byte(s)
		case strings.HasPrefix(k, headerField):
			msg.Headers[strings.TrimPrefix(k, headerField)] = []byte(s)
		}
	}
	if msg.ID == "" {
		msg.ID = m.ID
	}

	entryID := m.ID
	return messaging.Delivery{
		Message: msg,
		Ack: func(ctx context.Context) error {
			return t.client.XAck(ctx, queue, t.group, entryID).Err()
		},
	}
}

// Pending returns how many delivered entries await XACK in the group.
func (t *StreamTransport) Pending(ctx context.Context, queue string) (int64, error) {
	res, err := t.client.XPending(ctx, queue, t.group).Result()
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}
