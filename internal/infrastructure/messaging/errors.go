package messaging

import "fmt"

// UnregisteredHandlerError is returned when no handler is bound to an event type.
type UnregisteredHandlerError struct {
	EventType string
}

func (e *UnregisteredHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for event type %q", e.EventType)
}

// SerializationError is returned when an event cannot be encoded or decoded.
type SerializationError struct {
	Err       error
	EventType string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize event %q: %v", e.EventType, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PublishError is returned when the broker rejects or fails to confirm a message.
type PublishError struct {
	Err       error
	Queue     string
	EventType string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %q to %q: %v", e.EventType, e.Queue, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
