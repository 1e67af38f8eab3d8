package messaging

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/cashflow/internal/infrastructure/tracing"
)

// Publisher serializes events and sends them with trace headers.
type Publisher struct {
	transport Transport
	tracer    trace.Tracer
	system    string
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Transport Transport
	Tracer    trace.Tracer // defaults to the global provider
	System    string       // messaging.system span attribute, e.g. "rabbitmq"
}

// NewPublisher creates a Publisher.
func NewPublisher(cfg PublisherConfig) *Publisher {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Tracer()
	}
	return &Publisher{
		transport: cfg.Transport,
		tracer:    tracer,
		system:    cfg.System,
	}
}

// Publish sends event to queue. The producer span is a child of the span in
// ctx and its context is what the consumer continues.
func (p *Publisher) Publish(ctx context.Context, event Event, queue string) error {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.destination.name", queue),
		attribute.String("messaging.operation", "publish"),
		attribute.String("messaging.message.id", event.EventID()),
		attribute.String("event.type", event.EventType()),
	}
	if p.system != "" {
		attrs = append(attrs, attribute.String("messaging.system", p.system))
	}

	ctx, span := p.tracer.Start(ctx, queue+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	body, err := json.Marshal(event)
	if err != nil {
		err = &SerializationError{EventType: event.EventType(), Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	headers := Headers{
		HeaderType:      []byte(event.EventType()),
		HeaderMessageID: []byte(event.EventID()),
	}
	if c, ok := event.(Correlated); ok && c.Correlation() != "" {
		headers[HeaderCorrelationID] = []byte(c.Correlation())
	}
	tracing.Inject(ctx, tracing.HeaderCarrier(headers))

	msg := Message{
		ID:      event.EventID(),
		Type:    event.EventType(),
		Body:    body,
		Headers: headers,
	}

	if err := p.transport.Send(ctx, queue, msg); err != nil {
		err = &PublishError{Queue: queue, EventType: event.EventType(), Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
