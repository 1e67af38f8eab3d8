package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// InFlightMarker is stored under a key while its first request is running.
const InFlightMarker = "processing"

const idempotencyPrefix = "cashflow:idempotency:"

// claimScript sets KEYS[1] when absent and otherwise returns what it holds,
// in one round trip so a key expiring between the two steps cannot be
// reported as claimed-but-empty.
var claimScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return false
end
return redis.call("GET", KEYS[1])
`)

// IdempotencyStore implements usecase.IdempotencyStore on Redis strings.
type IdempotencyStore struct {
	client redis.Cmdable
	prefix string
}

func NewIdempotencyStore(client redis.Cmdable) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: idempotencyPrefix}
}

// CheckAndSet claims key with response, or InFlightMarker when response is
// nil. When the key is already held it reports true and the held value.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	value := response
	if value == nil {
		value = []byte(InFlightMarker)
	}

	held, err := claimScript.Run(ctx, s.client, []string{s.prefix + key}, value, ttl.Milliseconds()).Text()
	switch {
	case err == redis.Nil:
		return false, nil, nil
	case err != nil:
		return false, nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	return true, []byte(held), nil
}

// Update replaces whatever key holds with the final response and restarts
// its TTL.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, response, ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}
