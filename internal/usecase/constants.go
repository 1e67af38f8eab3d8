package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultBalanceCacheTTL is how long a daily balance stays cached
	DefaultBalanceCacheTTL = time.Minute

	// balanceCacheKeyPrefix prefixes cached balances, keyed by YYYY-MM-DD
	balanceCacheKeyPrefix = "balance:"

	// DateLayout is the wire format of calendar dates
	DateLayout = "2006-01-02"
)
