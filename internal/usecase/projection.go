package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
)

// BalanceProjection folds entry-created events into daily balances.
//
// Without a processed-event ledger delivery is at-least-once and a
// redelivered event is applied again. With one, the ledger row and the
// balance change commit together and replays are skipped.
type BalanceProjection struct {
	txManager     TransactionManager
	balanceRepo   BalanceRepository
	processedRepo ProcessedEventRepository
	idGen         IDGenerator
	retrier       Retrier
	cache         Cache
	metrics       *metrics.Metrics
	now           func() time.Time
}

// ProjectionConfig holds dependencies for a BalanceProjection.
type ProjectionConfig struct {
	TxManager   TransactionManager
	BalanceRepo BalanceRepository
	// ProcessedRepo enables deduplication when set.
	ProcessedRepo ProcessedEventRepository
	IDGen         IDGenerator
	Retrier       Retrier
	// Cache is invalidated after each committed change when set.
	Cache   Cache
	Metrics *metrics.Metrics
}

// NewBalanceProjection creates a new BalanceProjection.
func NewBalanceProjection(cfg ProjectionConfig) *BalanceProjection {
	return &BalanceProjection{
		txManager:     cfg.TxManager,
		balanceRepo:   cfg.BalanceRepo,
		processedRepo: cfg.ProcessedRepo,
		idGen:         cfg.IDGen,
		retrier:       cfg.Retrier,
		cache:         cfg.Cache,
		metrics:       cfg.Metrics,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Handle applies the signed amount of event to the balance of its date:
// +amount for credits, -amount for debits.
func (p *BalanceProjection) Handle(ctx context.Context, event domain.EntryCreatedEvent) error {
	log := zerolog.Ctx(ctx).With().
		Str("entry_id", event.EntryID).
		Str("date", event.Day().Format(DateLayout)).
		Logger()

	var (
		balance   *domain.Balance
		duplicate bool
	)

	err := p.retrier.Retry(ctx, func() error {
		var err error
		balance, duplicate, err = p.apply(ctx, event)
		return err
	})
	if err != nil {
		return err
	}

	if duplicate {
		p.metrics.ProjectionDuplicate()
		log.Info().Msg("event already projected, skipping")
		return nil
	}

	p.metrics.ProjectionApplied()

	if p.cache != nil {
		if err := p.cache.Delete(ctx, BalanceCacheKey(event.Day())); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate cached balance")
		}
	}

	log.Info().
		Str("delta", event.Delta().String()).
		Str("total", balance.Total.String()).
		Msg("balance updated")

	return nil
}

func (p *BalanceProjection) apply(ctx context.Context, event domain.EntryCreatedEvent) (*domain.Balance, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := p.txManager.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	now := p.now()

	if p.processedRepo != nil {
		first, err := p.processedRepo.MarkProcessed(ctx, tx, event.EventID(), event.EventType(), now)
		if err != nil {
			return nil, false, err
		}
		if !first {
			return nil, true, nil
		}
	}

	balance, err := p.balanceRepo.ApplyDelta(ctx, tx, p.idGen.Generate(), event.Day(), event.Delta(), now)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	return balance, false, nil
}
