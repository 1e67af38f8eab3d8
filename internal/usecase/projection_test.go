package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
	"github.com/iho/cashflow/internal/usecase/mocks"
)

var jan10 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func entryEvent(id string, direction domain.Direction, amount int64, date time.Time) domain.EntryCreatedEvent {
	return domain.EntryCreatedEvent{
		EntryID:   id,
		Date:      date,
		Direction: direction,
		Amount:    decimal.NewFromInt(amount),
	}
}

type projectionFixture struct {
	balances  *mocks.MemoryBalanceRepository
	processed *mocks.MemoryProcessedEventRepository
	cache     *mocks.MemoryCache
	txMgr     *mocks.MemoryTransactionManager
}

func newProjection(dedup bool) (*usecase.BalanceProjection, *projectionFixture) {
	f := &projectionFixture{
		balances:  mocks.NewMemoryBalanceRepository(),
		processed: mocks.NewMemoryProcessedEventRepository(),
		cache:     mocks.NewMemoryCache(),
		txMgr:     mocks.NewMemoryTransactionManager(),
	}
	cfg := usecase.ProjectionConfig{
		TxManager:   f.txMgr,
		BalanceRepo: f.balances,
		IDGen:       mocks.NewSequenceIDGenerator("bal"),
		Retrier:     mocks.NoRetry{},
		Cache:       f.cache,
	}
	if dedup {
		cfg.ProcessedRepo = f.processed
	}
	return usecase.NewBalanceProjection(cfg), f
}

func TestBalanceProjection_CreditThenDebit(t *testing.T) {
	p, f := newProjection(false)
	ctx := context.Background()

	if err := p.Handle(ctx, entryEvent("e1", domain.DirectionCredit, 100, jan10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Handle(ctx, entryEvent("e2", domain.DirectionDebit, 40, jan10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.balances.Total(jan10); !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected 60, got %s", got)
	}
}

func TestBalanceProjection_SumsAcrossDates(t *testing.T) {
	p, f := newProjection(false)
	ctx := context.Background()
	jan11 := jan10.AddDate(0, 0, 1)

	events := []domain.EntryCreatedEvent{
		entryEvent("e1", domain.DirectionCredit, 10, jan10),
		entryEvent("e2", domain.DirectionCredit, 20, jan10),
		entryEvent("e3", domain.DirectionDebit, 5, jan10),
		entryEvent("e4", domain.DirectionDebit, 7, jan11),
		// time of day is dropped
		entryEvent("e5", domain.DirectionCredit, 3, jan11.Add(15*time.Hour)),
	}
	for _, e := range events {
		if err := p.Handle(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := f.balances.Total(jan10); !got.Equal(decimal.NewFromInt(25)) {
		t.Errorf("jan 10: expected 25, got %s", got)
	}
	if got := f.balances.Total(jan11); !got.Equal(decimal.NewFromInt(-4)) {
		t.Errorf("jan 11: expected -4, got %s", got)
	}
}

func TestBalanceProjection_RedeliveryWithoutLedgerDoubleCounts(t *testing.T) {
	p, f := newProjection(false)
	ctx := context.Background()
	event := entryEvent("e1", domain.DirectionCredit, 100, jan10)

	for i := 0; i < 2; i++ {
		if err := p.Handle(ctx, event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := f.balances.Total(jan10); !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected redelivery to be applied twice (200), got %s", got)
	}
}

func TestBalanceProjection_RedeliveryWithLedgerIsSkipped(t *testing.T) {
	p, f := newProjection(true)
	ctx := context.Background()
	event := entryEvent("e1", domain.DirectionCredit, 100, jan10)

	for i := 0; i < 3; i++ {
		if err := p.Handle(ctx, event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := f.balances.Total(jan10); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected 100, got %s", got)
	}
}

func TestBalanceProjection_InvalidatesCache(t *testing.T) {
	p, f := newProjection(false)
	ctx := context.Background()
	key := usecase.BalanceCacheKey(jan10)

	if err := f.cache.Set(ctx, key, []byte(`{}`), time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := p.Handle(ctx, entryEvent("e1", domain.DirectionCredit, 1, jan10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.cache.Has(key) {
		t.Error("expected cached balance to be invalidated")
	}
}

func TestBalanceProjection_FailedApplyLeavesBalanceUntouched(t *testing.T) {
	p, f := newProjection(true)
	boom := errors.New("upsert failed")
	f.balances.ApplyDeltaFunc = func(ctx context.Context, tx usecase.Transaction, id string, date time.Time, delta decimal.Decimal, now time.Time) (*domain.Balance, error) {
		return nil, boom
	}

	err := p.Handle(context.Background(), entryEvent("e1", domain.DirectionCredit, 100, jan10))
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}

	// The ledger row rolled back with the failed change, so a retry applies.
	f.balances.ApplyDeltaFunc = nil
	if err := p.Handle(context.Background(), entryEvent("e1", domain.DirectionCredit, 100, jan10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.balances.Total(jan10); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected 100, got %s", got)
	}
}

func TestBalanceProjection_UsesSignedDelta(t *testing.T) {
	ctrl := gomock.NewController(t)

	txMgr := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	balances := mocks.NewMockBalanceRepository(ctrl)
	idGen := mocks.NewMockIDGenerator(ctrl)

	txMgr.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	idGen.EXPECT().Generate().Return("bal-1")
	balances.EXPECT().
		ApplyDelta(gomock.Any(), tx, "bal-1", jan10, gomock.Cond(func(x any) bool {
			d, ok := x.(decimal.Decimal)
			return ok && d.Equal(decimal.NewFromInt(-40))
		}), gomock.Any()).
		Return(&domain.Balance{ID: "bal-1", Date: jan10, Total: decimal.NewFromInt(-40)}, nil)
	tx.EXPECT().Commit(gomock.Any()).Return(nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	p := usecase.NewBalanceProjection(usecase.ProjectionConfig{
		TxManager:   txMgr,
		BalanceRepo: balances,
		IDGen:       idGen,
		Retrier:     mocks.NoRetry{},
	})

	if err := p.Handle(context.Background(), entryEvent("e2", domain.DirectionDebit, 40, jan10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
