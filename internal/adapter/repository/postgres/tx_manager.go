package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashflow/internal/usecase"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxOption tunes the transactions a TxManager starts.
type TxOption func(*pgx.TxOptions)

// WithIsolation sets the isolation level. Serialization failures surface as
// SQLSTATE 40001, which Retrier retries.
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(o *pgx.TxOptions) { o.IsoLevel = level }
}

// ReadOnly starts read-only transactions.
func ReadOnly() TxOption {
	return func(o *pgx.TxOptions) { o.AccessMode = pgx.ReadOnly }
}

// TxManager implements usecase.TransactionManager on a pgx pool.
type TxManager struct {
	db   txBeginner
	opts pgx.TxOptions
}

// NewTxManager returns a TxManager. Without options transactions run at the
// server default isolation level (read committed).
func NewTxManager(pool *pgxpool.Pool, opts ...TxOption) *TxManager {
	return newTxManager(pool, opts...)
}

func newTxManager(db txBeginner, opts ...TxOption) *TxManager {
	m := &TxManager{db: db}
	for _, opt := range opts {
		opt(&m.opts)
	}
	return m
}

// Begin starts a transaction with the manager's options.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	pgxTx, err := m.db.BeginTx(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: pgxTx}, nil
}

// Tx is the usecase.Transaction handed to the postgres repositories.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction. Rolling back an already finished
// transaction is a no-op, so callers can defer it unconditionally.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// PgxTx exposes the driver transaction for generated queries.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}
