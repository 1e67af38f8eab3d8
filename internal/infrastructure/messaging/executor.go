package messaging

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/cashflow/internal/infrastructure/tracing"
)

// EventSource is the event.source span attribute of handler spans.
const EventSource = "messaging"

// Executor dispatches events to the handler registered for their type.
type Executor struct {
	tracer    trace.Tracer
	factories map[string]HandlerFactory
	mu        sync.RWMutex
}

// NewExecutor creates an Executor. A nil tracer uses the global provider.
func NewExecutor(tracer trace.Tracer) *Executor {
	if tracer == nil {
		tracer = tracing.Tracer()
	}
	return &Executor{
		tracer:    tracer,
		factories: make(map[string]HandlerFactory),
	}
}

// Register binds factory to eventType, replacing any previous binding.
func (e *Executor) Register(eventType string, factory HandlerFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.factories[eventType] = factory
}

// Registered reports whether eventType has a handler.
func (e *Executor) Registered(eventType string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.factories[eventType]
	return ok
}

// Execute resolves the handler for event and runs it inside a span named
// after spanLabel. It fails with *UnregisteredHandlerError before opening
// a span when no handler is bound.
func (e *Executor) Execute(ctx context.Context, event Event, spanLabel string) error {
	e.mu.RLock()
	factory, ok := e.factories[event.EventType()]
	e.mu.RUnlock()

	if !ok {
		return &UnregisteredHandlerError{EventType: event.EventType()}
	}

	ctx, span := e.tracer.Start(ctx, "handle "+spanLabel,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("event.type", event.EventType()),
			attribute.String("event.id", event.EventID()),
			attribute.String("event.source", EventSource),
		),
	)
	defer span.End()

	handler, err := factory(ctx)
	if err != nil {
		err = fmt.Errorf("resolve handler for %q: %w", event.EventType(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := handler.Handle(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
