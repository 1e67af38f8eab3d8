package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decoder turns a message body into an event.
type Decoder func(body []byte) (Event, error)

// JSONDecoder decodes a JSON body into T.
func JSONDecoder[T Event]() Decoder {
	return func(body []byte) (Event, error) {
		var event T
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, &SerializationError{EventType: event.EventType(), Err: err}
		}
		return event, nil
	}
}

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// HandlerFactory resolves a handler for a single message. Factories run per
// execution so handlers may hold request-scoped state.
type HandlerFactory func(ctx context.Context) (Handler, error)

// Singleton returns a factory that always yields h.
func Singleton(h Handler) HandlerFactory {
	return func(context.Context) (Handler, error) {
		return h, nil
	}
}

// Typed adapts a handler of concrete event type T.
func Typed[T Event](fn func(ctx context.Context, event T) error) Handler {
	return HandlerFunc(func(ctx context.Context, event Event) error {
		typed, ok := event.(T)
		if !ok {
			var want T
			return fmt.Errorf("handler for %q received %T", want.EventType(), event)
		}
		return fn(ctx, typed)
	})
}
