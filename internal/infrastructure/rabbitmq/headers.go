package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iho/cashflow/internal/infrastructure/messaging"
)

func toTable(h messaging.Headers) amqp.Table {
	t := make(amqp.Table, len(h))
	for k, v := range h {
		t[k] = v
	}
	return t
}

// fromTable accepts byte, string and scalar header values, since other
// producers may write headers as strings.
func fromTable(t amqp.Table) messaging.Headers {
	h := make(messaging.Headers, len(t))
	for k, v := range t {
		switch val := v.(type) {
		case []byte:
			h[k] = append([]byte(nil), val...)
		case string:
			h[k] = []byte(val)
		case nil:
		default:
			h[k] = []byte(fmt.Sprint(val))
		}
	}
	return h
}
