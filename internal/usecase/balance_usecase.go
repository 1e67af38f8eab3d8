package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/domain"
)

// BalanceUseCase answers daily balance queries through a read-through cache.
type BalanceUseCase struct {
	balanceRepo BalanceRepository
	cache       Cache
	cacheTTL    time.Duration
}

// NewBalanceUseCase creates a new BalanceUseCase. cache may be nil.
func NewBalanceUseCase(balanceRepo BalanceRepository, cache Cache, cacheTTL time.Duration) *BalanceUseCase {
	if cacheTTL <= 0 {
		cacheTTL = DefaultBalanceCacheTTL
	}
	return &BalanceUseCase{
		balanceRepo: balanceRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
}

// BalanceCacheKey returns the cache key of the balance of date.
func BalanceCacheKey(date time.Time) string {
	return balanceCacheKeyPrefix + domain.DateOf(date).Format(DateLayout)
}

// GetBalance returns the balance of date or domain.ErrBalanceNotFound.
// Cache failures degrade to a storage read.
func (uc *BalanceUseCase) GetBalance(ctx context.Context, date time.Time) (*domain.Balance, error) {
	if date.IsZero() {
		return nil, domain.NewValidationError("date", domain.ErrMissingDate)
	}

	key := BalanceCacheKey(date)
	log := zerolog.Ctx(ctx)

	if uc.cache != nil {
		raw, err := uc.cache.Get(ctx, key)
		switch {
		case err == nil:
			var cached domain.Balance
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
			log.Warn().Str("key", key).Msg("discarding undecodable cached balance")
		case !errors.Is(err, ErrCacheMiss):
			log.Warn().Err(err).Str("key", key).Msg("balance cache read failed")
		}
	}

	balance, err := uc.balanceRepo.GetByDate(ctx, domain.DateOf(date))
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(balance); err == nil {
			if err := uc.cache.Set(ctx, key, raw, uc.cacheTTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("balance cache write failed")
			}
		}
	}

	return balance, nil
}
