// Package messaging carries events between services over a broker: typed
// handler dispatch, a tracing publisher and a consumer loop. Broker specific
// transports live in the rabbitmq and redis packages.
package messaging

import (
	"context"
)

// Well-known headers
const (
	HeaderType          = "type"
	HeaderMessageID     = "message_id"
	HeaderCorrelationID = "correlation_id"
)

// Headers is the flat header map of a broker message.
type Headers map[string][]byte

// Message is one broker envelope.
type Message struct {
	Headers Headers
	ID      string
	Type    string
	Body    []byte
}

// Delivery is a received message and the callback settling it.
type Delivery struct {
	Ack func(ctx context.Context) error
	Message
}

// Transport sends messages to a named queue.
type Transport interface {
	Send(ctx context.Context, queue string, msg Message) error
}

// Source streams deliveries from a named queue until ctx is cancelled,
// then closes the channel.
type Source interface {
	Consume(ctx context.Context, queue string) (<-chan Delivery, error)
}

// Event is anything published through the pipeline.
type Event interface {
	EventType() string
	EventID() string
}

// Correlated events carry the correlation id of the request that caused them.
type Correlated interface {
	Correlation() string
}
