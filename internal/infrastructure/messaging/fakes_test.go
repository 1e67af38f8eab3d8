package messaging

import (
	"context"
	"errors"
	"sync"
)

type testEvent struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
	Corr   string `json:"corr,omitempty"`
}

func (e testEvent) EventType() string   { return "test.happened" }
func (e testEvent) EventID() string     { return e.ID }
func (e testEvent) Correlation() string { return e.Corr }

type unmarshalableEvent struct {
	Ch chan int
}

func (unmarshalableEvent) EventType() string { return "bad" }
func (unmarshalableEvent) EventID() string   { return "bad-1" }

// memoryBroker is an in-process Transport and Source.
type memoryBroker struct {
	queues  map[string]chan Delivery
	sendErr error
	sent    []Message
	acked   []string
	mu      sync.Mutex
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{queues: make(map[string]chan Delivery)}
}

func (b *memoryBroker) queue(name string) chan Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan Delivery, 64)
		b.queues[name] = q
	}
	return q
}

func (b *memoryBroker) Send(_ context.Context, queue string, msg Message) error {
	b.mu.Lock()
	if b.sendErr != nil {
		b.mu.Unlock()
		return b.sendErr
	}
	b.sent = append(b.sent, msg)
	b.mu.Unlock()

	b.queue(queue) <- Delivery{
		Message: msg,
		Ack: func(context.Context) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.acked = append(b.acked, msg.ID)
			return nil
		},
	}
	return nil
}

func (b *memoryBroker) Consume(ctx context.Context, queue string) (<-chan Delivery, error) {
	in := b.queue(queue)
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-in:
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *memoryBroker) ackedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.acked...)
}

type failingSource struct{}

func (failingSource) Consume(context.Context, string) (<-chan Delivery, error) {
	return nil, errors.New("connection refused")
}
