package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// MemoryTransactionManager hands out MemoryTx transactions.
type MemoryTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	// CommitErr, when set, fails every commit.
	CommitErr error

	mu        sync.Mutex
	begun     int
	committed int
}

func NewMemoryTransactionManager() *MemoryTransactionManager {
	return &MemoryTransactionManager{}
}

func (m *MemoryTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begun++
	return &MemoryTx{manager: m}, nil
}

// Stats returns how many transactions were begun and committed.
func (m *MemoryTransactionManager) Stats() (begun, committed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begun, m.committed
}

// MemoryTx stages writes and applies them on Commit.
type MemoryTx struct {
	manager *MemoryTransactionManager
	ops     []func()
	done    bool
}

func (t *MemoryTx) stage(op func()) {
	t.ops = append(t.ops, op)
}

func (t *MemoryTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("tx is closed")
	}
	t.done = true
	if t.manager != nil && t.manager.CommitErr != nil {
		return t.manager.CommitErr
	}
	for _, op := range t.ops {
		op()
	}
	if t.manager != nil {
		t.manager.mu.Lock()
		t.manager.committed++
		t.manager.mu.Unlock()
	}
	return nil
}

func (t *MemoryTx) Rollback(ctx context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}

// run applies op at commit when tx is a MemoryTx, immediately otherwise.
func run(tx usecase.Transaction, op func()) {
	if mt, ok := tx.(*MemoryTx); ok {
		mt.stage(op)
		return
	}
	op()
}

// MemoryEntryRepository is an in-memory EntryRepository.
type MemoryEntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.Entry

	CreateFunc func(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error
}

func NewMemoryEntryRepository() *MemoryEntryRepository {
	return &MemoryEntryRepository{entries: make(map[string]*domain.Entry)}
}

func (m *MemoryEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	run(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.entries[entry.ID] = entry
	})
	return nil
}

func (m *MemoryEntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	return nil, domain.ErrEntryNotFound
}

func (m *MemoryEntryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// MemoryOutboxRepository is an in-memory OutboxRepository with leases.
type MemoryOutboxRepository struct {
	mu      sync.Mutex
	records map[string]*domain.OutboxRecord
	claims  map[string]claim

	Now               func() time.Time
	CreateFunc        func(ctx context.Context, tx usecase.Transaction, record *domain.OutboxRecord) error
	FetchPendingFunc  func(ctx context.Context, limit int) ([]*domain.OutboxRecord, error)
	MarkProcessedFunc func(ctx context.Context, id, owner string, processedAt time.Time) error
}

type claim struct {
	until time.Time
	owner string
}

func NewMemoryOutboxRepository() *MemoryOutboxRepository {
	return &MemoryOutboxRepository{
		records: make(map[string]*domain.OutboxRecord),
		claims:  make(map[string]claim),
		Now:     time.Now,
	}
}

// Add stores a committed record directly.
func (m *MemoryOutboxRepository) Add(records ...*domain.OutboxRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
}

func (m *MemoryOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.OutboxRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, record)
	}
	run(tx, func() { m.Add(record) })
	return nil
}

func (m *MemoryOutboxRepository) GetByID(ctx context.Context, id string) (*domain.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrOutboxRecordNotFound
	}
	cp := *r
	return &cp, nil
}

// sorted returns records matching keep ordered by creation.
// Callers hold m.mu.
func (m *MemoryOutboxRepository) sorted(keep func(*domain.OutboxRecord) bool) []*domain.OutboxRecord {
	var out []*domain.OutboxRecord
	for _, r := range m.records {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func limitTo(records []*domain.OutboxRecord, limit int) []*domain.OutboxRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func (m *MemoryOutboxRepository) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxRecord, error) {
	if m.FetchPendingFunc != nil {
		return m.FetchPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return limitTo(m.sorted(func(r *domain.OutboxRecord) bool { return r.Pending() }), limit), nil
}

func (m *MemoryOutboxRepository) ClaimPending(ctx context.Context, owner string, limit int, lease time.Duration) ([]*domain.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	claimable := m.sorted(func(r *domain.OutboxRecord) bool {
		c, held := m.claims[r.ID]
		return r.Pending() && (!held || c.until.Before(now))
	})
	claimable = limitTo(claimable, limit)
	for _, r := range claimable {
		m.claims[r.ID] = claim{owner: owner, until: now.Add(lease)}
	}
	return claimable, nil
}

// ClaimedBy returns the current lease owner of id, or "".
func (m *MemoryOutboxRepository) ClaimedBy(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[id].owner
}

func (m *MemoryOutboxRepository) holds(id, owner string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	return ok && c.owner == owner
}

func (m *MemoryOutboxRepository) update(id string, fn func(r *domain.OutboxRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Processed {
		return domain.ErrOutboxRecordNotFound
	}
	fn(r)
	delete(m.claims, id)
	return nil
}

func (m *MemoryOutboxRepository) MarkProcessed(ctx context.Context, id, owner string, processedAt time.Time) error {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, id, owner, processedAt)
	}
	if !m.holds(id, owner) {
		return domain.ErrOutboxClaimLost
	}
	return m.update(id, func(r *domain.OutboxRecord) {
		r.Processed = true
		r.ProcessedAt = &processedAt
	})
}

func (m *MemoryOutboxRepository) Unclaim(ctx context.Context, id, owner string) error {
	if !m.holds(id, owner) {
		return domain.ErrOutboxClaimLost
	}
	return m.update(id, func(*domain.OutboxRecord) {})
}

func (m *MemoryOutboxRepository) Release(ctx context.Context, id string, cause string) error {
	return m.update(id, func(r *domain.OutboxRecord) {
		r.Attempts++
		r.LastError = cause
	})
}

func (m *MemoryOutboxRepository) MarkFailed(ctx context.Context, id string, failedAt time.Time, cause string) error {
	return m.update(id, func(r *domain.OutboxRecord) {
		r.FailedAt = &failedAt
		r.LastError = cause
	})
}

func (m *MemoryOutboxRepository) Requeue(ctx context.Context, id string) error {
	return m.update(id, func(r *domain.OutboxRecord) {
		r.FailedAt = nil
		r.LastError = ""
		r.Attempts = 0
	})
}

func (m *MemoryOutboxRepository) ListUnprocessed(ctx context.Context, limit, offset int) ([]*domain.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(r *domain.OutboxRecord) bool { return !r.Processed })
	if offset >= len(all) {
		return nil, nil
	}
	return limitTo(all[offset:], limit), nil
}

func (m *MemoryOutboxRepository) DeleteProcessed(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.Processed && r.ProcessedAt != nil && r.ProcessedAt.Before(before) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryOutboxRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// MemoryBalanceRepository is an in-memory BalanceRepository.
type MemoryBalanceRepository struct {
	mu       sync.RWMutex
	balances map[string]*domain.Balance

	ApplyDeltaFunc func(ctx context.Context, tx usecase.Transaction, id string, date time.Time, delta decimal.Decimal, now time.Time) (*domain.Balance, error)
	GetCalls       int
}

func NewMemoryBalanceRepository() *MemoryBalanceRepository {
	return &MemoryBalanceRepository{balances: make(map[string]*domain.Balance)}
}

func dayKey(t time.Time) string {
	return domain.DateOf(t).Format(usecase.DateLayout)
}

func (m *MemoryBalanceRepository) GetByDate(ctx context.Context, date time.Time) (*domain.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if b, ok := m.balances[dayKey(date)]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, domain.ErrBalanceNotFound
}

func (m *MemoryBalanceRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, id string, date time.Time, delta decimal.Decimal, now time.Time) (*domain.Balance, error) {
	if m.ApplyDeltaFunc != nil {
		return m.ApplyDeltaFunc(ctx, tx, id, date, delta, now)
	}

	m.mu.RLock()
	var result domain.Balance
	if b, ok := m.balances[dayKey(date)]; ok {
		result = *b
		result.Apply(delta, now)
	} else {
		result = *domain.NewBalance(id, date, delta, now)
	}
	m.mu.RUnlock()

	run(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if b, ok := m.balances[dayKey(date)]; ok {
			b.Apply(delta, now)
			return
		}
		m.balances[dayKey(date)] = domain.NewBalance(id, date, delta, now)
	})

	return &result, nil
}

// Total returns the committed total of date, zero when absent.
func (m *MemoryBalanceRepository) Total(date time.Time) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[dayKey(date)]; ok {
		return b.Total
	}
	return decimal.Zero
}

// MemoryProcessedEventRepository is an in-memory ProcessedEventRepository.
type MemoryProcessedEventRepository struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryProcessedEventRepository() *MemoryProcessedEventRepository {
	return &MemoryProcessedEventRepository{seen: make(map[string]bool)}
}

func (m *MemoryProcessedEventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, eventID, eventType string, at time.Time) (bool, error) {
	m.mu.Lock()
	seen := m.seen[eventID]
	m.mu.Unlock()
	if seen {
		return false, nil
	}
	run(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.seen[eventID] = true
	})
	return true, nil
}

// SequenceIDGenerator returns prefix-1, prefix-2, ...
type SequenceIDGenerator struct {
	GenerateFunc func() string
	Prefix       string
	counter      int
	mu           sync.Mutex
}

func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{Prefix: prefix}
}

func (m *SequenceIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("%s-%d", m.Prefix, m.counter)
}

// NoRetry runs operations exactly once.
type NoRetry struct{}

func (NoRetry) Retry(ctx context.Context, operation func() error) error {
	return operation()
}

// MemoryCache is an in-memory Cache.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string][]byte

	GetErr error
	SetErr error
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	return v, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MemoryIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MemoryIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

var (
	_ usecase.TransactionManager       = (*MemoryTransactionManager)(nil)
	_ usecase.EntryRepository          = (*MemoryEntryRepository)(nil)
	_ usecase.OutboxRepository         = (*MemoryOutboxRepository)(nil)
	_ usecase.BalanceRepository        = (*MemoryBalanceRepository)(nil)
	_ usecase.ProcessedEventRepository = (*MemoryProcessedEventRepository)(nil)
	_ usecase.IDGenerator              = (*SequenceIDGenerator)(nil)
	_ usecase.Retrier                  = NoRetry{}
	_ usecase.Cache                    = (*MemoryCache)(nil)
	_ usecase.IdempotencyStore         = (*MemoryIdempotencyStore)(nil)
)
