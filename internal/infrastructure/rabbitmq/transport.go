package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iho/cashflow/internal/infrastructure/messaging"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("publish not confirmed by broker")

// Opener opens a fresh channel.
type Opener func() (Channel, error)

// Config configures a Transport.
type Config struct {
	Open        Opener
	ConsumerTag string
	Prefetch    int
}

// Transport publishes to and consumes from durable queues on the default
// exchange. Publishing reuses one confirm-mode channel, reopening it after
// it closes.
type Transport struct {
	open        Opener
	ch          Channel
	declared    map[string]bool
	consumerTag string
	prefetch    int
	mu          sync.Mutex
}

// NewTransport creates a Transport.
func NewTransport(cfg Config) *Transport {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Transport{
		open:        cfg.Open,
		declared:    make(map[string]bool),
		consumerTag: cfg.ConsumerTag,
		prefetch:    cfg.Prefetch,
	}
}

func declare(ch Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}
	return nil
}

// channel returns the publishing channel, opening one if needed.
// Callers hold t.mu.
func (t *Transport) channel() (Channel, error) {
	if t.ch != nil && !t.ch.IsClosed() {
		return t.ch, nil
	}

	ch, err := t.open()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	t.ch = ch
	t.declared = make(map[string]bool)
	return ch, nil
}

// Send publishes msg to queue and waits for the broker confirm.
func (t *Transport) Send(ctx context.Context, queue string, msg messaging.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, err := t.channel()
	if err != nil {
		return err
	}

	if !t.declared[queue] {
		if err := declare(ch, queue); err != nil {
			return err
		}
		t.declared[queue] = true
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		Headers:      toTable(msg.Headers),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Type,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	// dc is nil only when the channel is not in confirm mode.
	if dc == nil {
		return nil
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}

	return nil
}

// Consume starts a manual-ack consumer on its own channel. The returned
// channel closes when ctx is cancelled or the broker closes the channel.
func (t *Transport) Consume(ctx context.Context, queue string) (<-chan messaging.Delivery, error) {
	ch, err := t.open()
	if err != nil {
		return nil, err
	}

	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}

	if err := ch.Qos(t.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(queue, t.consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to consume %q: %w", queue, err)
	}

	out := make(chan messaging.Delivery)
	go func() {
		defer close(out)
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				_ = ch.Cancel(t.consumerTag, false)
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- toDelivery(d):
				case <-ctx.Done():
					_ = ch.Cancel(t.consumerTag, false)
					return
				}
			}
		}
	}()

	return out, nil
}

func toDelivery(d amqp.Delivery) messaging.Delivery {
	return messaging.Delivery{
		Message: messaging.Message{
			ID:      d.MessageId,
			Type:    d.Type,
			Body:    d.Body,
			Headers: fromTable(d.Headers),
		},
		Ack: func(context.Context) error {
			return d.Ack(false)
		},
	}
}

// Close closes the publishing channel.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ch == nil {
		return nil
	}
	err := t.ch.Close()
	t.ch = nil
	return err
}
