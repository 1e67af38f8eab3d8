package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// EntryRepository defines data access for entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
}

// OutboxRepository defines data access for outbox records.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.OutboxRecord) error
	GetByID(ctx context.Context, id string) (*domain.OutboxRecord, error)
	// FetchPending returns unprocessed, non-failed records oldest first.
	FetchPending(ctx context.Context, limit int) ([]*domain.OutboxRecord, error)
	// ClaimPending leases up to limit pending records to owner for lease.
	// Records leased by another owner are skipped until the lease expires.
	ClaimPending(ctx context.Context, owner string, limit int, lease time.Duration) ([]*domain.OutboxRecord, error)
	// MarkProcessed settles a record still leased to owner; otherwise it
	// returns domain.ErrOutboxClaimLost and changes nothing.
	MarkProcessed(ctx context.Context, id, owner string, processedAt time.Time) error
	// Release drops the lease after a failed publish and counts the attempt.
	Release(ctx context.Context, id string, cause string) error
	// Unclaim drops owner's lease on a record it never tried to publish.
	Unclaim(ctx context.Context, id, owner string) error
	// MarkFailed parks a record that can never be published.
	MarkFailed(ctx context.Context, id string, failedAt time.Time, cause string) error
	Requeue(ctx context.Context, id string) error
	ListUnprocessed(ctx context.Context, limit, offset int) ([]*domain.OutboxRecord, error)
	DeleteProcessed(ctx context.Context, before time.Time) (int64, error)
}

// BalanceRepository defines data access for daily balances.
type BalanceRepository interface {
	GetByDate(ctx context.Context, date time.Time) (*domain.Balance, error)
	// ApplyDelta creates the balance of date with delta or adds delta to it.
	// id is used only when the row is created.
	ApplyDelta(ctx context.Context, tx Transaction, id string, date time.Time, delta decimal.Decimal, now time.Time) (*domain.Balance, error)
}

// ProcessedEventRepository records projected events.
type ProcessedEventRepository interface {
	// MarkProcessed records eventID and reports false if it was already recorded.
	MarkProcessed(ctx context.Context, tx Transaction, eventID, eventType string, at time.Time) (bool, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier retries an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
