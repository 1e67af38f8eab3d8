package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/cashflow/internal/infrastructure/logger"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
	"github.com/iho/cashflow/internal/infrastructure/tracing"
)

// ConsumerConfig holds dependencies for a Consumer.
type ConsumerConfig struct {
	Source   Source
	Executor *Executor
	// Decoders by event type. Messages without a type header are decoded
	// as EventType.
	Decoders  map[string]Decoder
	Tracer    trace.Tracer
	Metrics   *metrics.Metrics
	Logger    *zerolog.Logger // defaults to the global logger
	Queue     string
	EventType string
}

// Consumer receives messages from one queue and dispatches them through an
// Executor, one at a time.
type Consumer struct {
	source    Source
	executor  *Executor
	decoders  map[string]Decoder
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	queue     string
	eventType string
}

// NewConsumer creates a new Consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Tracer()
	}

	l := cfg.Logger
	if l == nil {
		l = &log.Logger
	}

	return &Consumer{
		source:    cfg.Source,
		executor:  cfg.Executor,
		decoders:  cfg.Decoders,
		tracer:    tracer,
		metrics:   cfg.Metrics,
		logger:    l.With().Str("component", "consumer").Str("queue", cfg.Queue).Logger(),
		queue:     cfg.Queue,
		eventType: cfg.EventType,
	}
}

// Start consumes until ctx is cancelled or the source closes. A message
// already being handled when ctx is cancelled runs to completion.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.source.Consume(ctx, c.queue)
	if err != nil {
		return err
	}

	c.logger.Info().Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("consumer shutting down")
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					c.logger.Info().Msg("consumer shutting down")
					return ctx.Err()
				}
				return errors.New("delivery channel closed")
			}
			c.process(context.WithoutCancel(ctx), d)
		}
	}
}

// process handles one delivery and always acknowledges it afterwards.
func (c *Consumer) process(ctx context.Context, d Delivery) {
	start := time.Now()

	ctx, tc := tracing.Extract(ctx, tracing.HeaderCarrier(d.Headers))

	eventType := d.Type
	if eventType == "" {
		eventType = string(d.Headers[HeaderType])
	}
	if eventType == "" {
		eventType = c.eventType
	}

	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.source.name", c.queue),
			attribute.String("messaging.operation", "process"),
			attribute.String("messaging.message.id", d.ID),
			attribute.String("event.type", eventType),
		),
	}
	if !tc.Valid {
		opts = append(opts, trace.WithNewRoot())
	}

	ctx, span := c.tracer.Start(ctx, c.queue+" process", opts...)
	defer span.End()

	l := c.logger.With().
		Str("message_id", d.ID).
		Str("event_type", eventType).
		Str("trace_id", span.SpanContext().TraceID().String()).
		Logger()
	ctx = l.WithContext(ctx)
	if id := string(d.Headers[HeaderCorrelationID]); id != "" {
		ctx = logger.WithCorrelationID(ctx, l, id)
	}
	lg := zerolog.Ctx(ctx)

	outcome := c.dispatch(ctx, d, eventType)
	switch outcome.name {
	case metrics.OutcomeHandled:
		lg.Debug().Msg("message handled")
	case metrics.OutcomeMalformed:
		span.RecordError(outcome.err)
		span.SetStatus(codes.Error, outcome.err.Error())
		lg.Error().Err(outcome.err).Msg("dropping malformed message")
	default:
		span.RecordError(outcome.err)
		span.SetStatus(codes.Error, outcome.err.Error())
		lg.Error().Err(outcome.err).Str("outcome", outcome.name).Msg("message handling failed")
	}

	if d.Ack != nil {
		if err := d.Ack(ctx); err != nil {
			lg.Error().Err(err).Msg("failed to ack message")
		}
	}

	c.metrics.MessageConsumed(c.queue, outcome.name)
	c.metrics.ObserveHandle(eventType, time.Since(start))
}

type result struct {
	err  error
	name string
}

func (c *Consumer) dispatch(ctx context.Context, d Delivery, eventType string) result {
	decode, ok := c.decoders[eventType]
	if !ok {
		return result{name: metrics.OutcomeUnregistered, err: &UnregisteredHandlerError{EventType: eventType}}
	}

	event, err := decode(d.Body)
	if err != nil {
		var serr *SerializationError
		if !errors.As(err, &serr) {
			err = &SerializationError{EventType: eventType, Err: err}
		}
		return result{name: metrics.OutcomeMalformed, err: err}
	}

	if err := c.executor.Execute(ctx, event, eventType); err != nil {
		var unregistered *UnregisteredHandlerError
		if errors.As(err, &unregistered) {
			return result{name: metrics.OutcomeUnregistered, err: err}
		}
		return result{name: metrics.OutcomeFailed, err: err}
	}

	return result{name: metrics.OutcomeHandled}
}
