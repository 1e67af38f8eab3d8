package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/cashflow/internal/usecase"
)

const cachePrefix = "cashflow:cache:"

// Cache implements usecase.Cache for the balance read path. Values are
// opaque bytes; a zero TTL keeps them until deleted.
type Cache struct {
	client redis.Cmdable
	prefix string
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithKeyPrefix namespaces every key, so two deployments can share one
// Redis.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cache) { c.prefix = prefix }
}

func NewCache(client redis.Cmdable, opts ...CacheOption) *Cache {
	c := &Cache{client: client, prefix: cachePrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns usecase.ErrCacheMiss for absent or expired keys.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, usecase.ErrCacheMiss
	}
	return val, err
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete is idempotent; removing an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
