package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

var jan10 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

var outboxColumns = []string{
	"id", "type", "content", "trace_parent", "created_at", "processed", "processed_at",
	"attempts", "last_error", "failed_at", "claimed_by", "claimed_until",
}

func outboxRow(rows *pgxmock.Rows, id string, created time.Time) *pgxmock.Rows {
	return rows.AddRow(
		id, domain.EventTypeEntryCreated, []byte(`{}`),
		pgtype.Text{String: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", Valid: true},
		pgtype.Timestamptz{Time: created, Valid: true}, false, pgtype.Timestamptz{},
		int32(0), pgtype.Text{}, pgtype.Timestamptz{}, pgtype.Text{String: "d-1", Valid: true},
		pgtype.Timestamptz{Time: created.Add(time.Minute), Valid: true},
	)
}

func beginTx(t *testing.T, pool pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	pool.ExpectBeginTx(pgx.TxOptions{})
	tx, err := newTxManager(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	return tx
}

func TestEntryRepositoryCreateWithinTx(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectQuery("INSERT INTO entries").
		WithArgs("e-1", pgtype.Date{Time: jan10, Valid: true}, pgxmock.AnyArg(), "credit", "sale", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "entry_date", "amount", "direction", "description", "created_at"}).
			AddRow("e-1", pgtype.Date{Time: jan10, Valid: true}, decimalToNumeric(decimal.NewFromInt(100)), "credit", "sale", pgtype.Timestamptz{Time: jan10, Valid: true}))
	pool.ExpectCommit()

	repo := NewEntryRepository(pool)
	entry := &domain.Entry{
		ID:          "e-1",
		Date:        jan10.Add(15 * time.Hour),
		Amount:      decimal.NewFromInt(100),
		Direction:   domain.DirectionCredit,
		Description: "sale",
		CreatedAt:   jan10,
	}

	if err := repo.Create(context.Background(), tx, entry); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestEntryRepositoryRejectsForeignTransaction(t *testing.T) {
	pool := newMockPool(t)
	repo := NewEntryRepository(pool)

	err := repo.Create(context.Background(), foreignTx{}, &domain.Entry{ID: "e-1"})
	if !errors.Is(err, ErrForeignTransaction) {
		t.Fatalf("expected ErrForeignTransaction, got %v", err)
	}
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

func TestEntryRepositoryGetByID(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("FROM entries").
		WithArgs("e-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "entry_date", "amount", "direction", "description", "created_at"}).
			AddRow("e-1", pgtype.Date{Time: jan10, Valid: true}, decimalToNumeric(decimal.RequireFromString("12.50")), "debit", "rent", pgtype.Timestamptz{Time: jan10, Valid: true}))
	pool.ExpectQuery("FROM entries").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewEntryRepository(pool)

	entry, err := repo.GetByID(context.Background(), "e-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Direction != domain.DirectionDebit || !entry.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !entry.Date.Equal(jan10) {
		t.Errorf("expected date %v, got %v", jan10, entry.Date)
	}

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestOutboxRepositoryCreateStoresTraceParent(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO outbox_messages").
		WithArgs("o-1", domain.EventTypeEntryCreated, []byte(`{"a":1}`), pgtype.Text{String: "tp", Valid: true}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO outbox_messages").
		WithArgs("o-2", domain.EventTypeEntryCreated, []byte(`{}`), pgtype.Text{}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewOutboxRepository(pool)
	ctx := context.Background()

	if err := repo.Create(ctx, tx, domain.NewOutboxRecord("o-1", domain.EventTypeEntryCreated, []byte(`{"a":1}`), "tp", jan10)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, tx, domain.NewOutboxRecord("o-2", domain.EventTypeEntryCreated, []byte(`{}`), "", jan10)); err != nil {
		t.Fatalf("create without trace parent failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestOutboxRepositoryClaimPendingSortsByCreation(t *testing.T) {
	pool := newMockPool(t)
	now := jan10.Add(time.Hour)

	rows := pgxmock.NewRows(outboxColumns)
	outboxRow(rows, "o-2", jan10.Add(2*time.Second))
	outboxRow(rows, "o-1", jan10.Add(time.Second))

	pool.ExpectQuery("UPDATE outbox_messages").
		WithArgs(pgtype.Text{String: "d-1", Valid: true}, pgtype.Timestamptz{Time: now.Add(30 * time.Second), Valid: true}, pgtype.Timestamptz{Time: now, Valid: true}, int32(10)).
		WillReturnRows(rows)

	repo := NewOutboxRepository(pool)
	repo.now = func() time.Time { return now }

	records, err := repo.ClaimPending(context.Background(), "d-1", 10, 30*time.Second)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(records) != 2 || records[0].ID != "o-1" || records[1].ID != "o-2" {
		t.Fatalf("expected o-1, o-2, got %v", records)
	}
	if records[0].TraceParent == "" {
		t.Error("expected trace parent to be read")
	}

	assertExpectations(t, pool)
}

func TestOutboxRepositoryFetchPending(t *testing.T) {
	pool := newMockPool(t)
	rows := pgxmock.NewRows(outboxColumns)
	outboxRow(rows, "o-1", jan10)

	pool.ExpectQuery("WHERE processed = FALSE AND failed_at IS NULL").
		WithArgs(int32(5)).
		WillReturnRows(rows)

	records, err := NewOutboxRepository(pool).FetchPending(context.Background(), 5)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 1 || !records[0].Pending() {
		t.Fatalf("expected one pending record, got %v", records)
	}

	assertExpectations(t, pool)
}

func TestOutboxRepositorySettlement(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		rows    int64
		call    func(*OutboxRepository) error
		wantErr error
	}{
		{
			name:    "mark processed by lease owner",
			pattern: "(?s)SET processed = TRUE.*claimed_by = \\$3",
			rows:    1,
			call: func(r *OutboxRepository) error {
				return r.MarkProcessed(context.Background(), "o-1", "entries-a", jan10)
			},
		},
		{
			name:    "mark processed after lease moved",
			pattern: "SET processed = TRUE",
			rows:    0,
			call: func(r *OutboxRepository) error {
				return r.MarkProcessed(context.Background(), "o-1", "entries-a", jan10)
			},
			wantErr: domain.ErrOutboxClaimLost,
		},
		{
			name:    "unclaim keeps attempts",
			pattern: "SET claimed_by = NULL, claimed_until = NULL\\s+WHERE id = \\$1 AND processed = FALSE AND claimed_by = \\$2",
			rows:    1,
			call: func(r *OutboxRepository) error {
				return r.Unclaim(context.Background(), "o-1", "entries-a")
			},
		},
		{
			name:    "unclaim lost lease",
			pattern: "SET claimed_by = NULL, claimed_until = NULL",
			rows:    0,
			call: func(r *OutboxRepository) error {
				return r.Unclaim(context.Background(), "o-1", "entries-a")
			},
			wantErr: domain.ErrOutboxClaimLost,
		},
		{
			name:    "release",
			pattern: "SET attempts = attempts \\+ 1",
			rows:    1,
			call: func(r *OutboxRepository) error {
				return r.Release(context.Background(), "o-1", "broker down")
			},
		},
		{
			name:    "mark failed",
			pattern: "SET failed_at = \\$2",
			rows:    1,
			call: func(r *OutboxRepository) error {
				return r.MarkFailed(context.Background(), "o-1", jan10, "unknown type")
			},
		},
		{
			name:    "requeue unknown record",
			pattern: "SET failed_at = NULL",
			rows:    0,
			call: func(r *OutboxRepository) error {
				return r.Requeue(context.Background(), "o-1")
			},
			wantErr: domain.ErrOutboxRecordNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			pool.ExpectExec(tt.pattern).WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			err := tt.call(NewOutboxRepository(pool))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			assertExpectations(t, pool)
		})
	}
}

func TestOutboxRepositoryDeleteProcessed(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("DELETE FROM outbox_messages").
		WithArgs(pgtype.Timestamptz{Time: jan10, Valid: true}).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := NewOutboxRepository(pool).DeleteProcessed(context.Background(), jan10)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7, got %d", n)
	}

	assertExpectations(t, pool)
}

func TestBalanceRepositoryApplyDelta(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectQuery("INSERT INTO daily_balances").
		WithArgs("b-1", pgtype.Date{Time: jan10, Valid: true}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "balance_date", "total", "updated_at"}).
			AddRow("b-0", pgtype.Date{Time: jan10, Valid: true}, decimalToNumeric(decimal.NewFromInt(60)), pgtype.Timestamptz{Time: jan10, Valid: true}))

	repo := NewBalanceRepository(pool)

	balance, err := repo.ApplyDelta(context.Background(), tx, "b-1", jan10, decimal.NewFromInt(-40), jan10)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if balance.ID != "b-0" || !balance.Total.Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected existing row b-0 with 60, got %+v", balance)
	}

	assertExpectations(t, pool)
}

func TestBalanceRepositoryGetByDate(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("FROM daily_balances").
		WithArgs(pgtype.Date{Time: jan10, Valid: true}).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewBalanceRepository(pool).GetByDate(context.Background(), jan10.Add(8*time.Hour))
	if !errors.Is(err, domain.ErrBalanceNotFound) {
		t.Fatalf("expected ErrBalanceNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestProcessedEventRepositoryMarkProcessed(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO processed_events").
		WithArgs("e-1", domain.EventTypeEntryCreated, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO processed_events").
		WithArgs("e-1", domain.EventTypeEntryCreated, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := NewProcessedEventRepository()
	ctx := context.Background()

	first, err := repo.MarkProcessed(ctx, tx, "e-1", domain.EventTypeEntryCreated, jan10)
	if err != nil || !first {
		t.Fatalf("expected first delivery, got first=%v err=%v", first, err)
	}

	first, err = repo.MarkProcessed(ctx, tx, "e-1", domain.EventTypeEntryCreated, jan10)
	if err != nil || first {
		t.Fatalf("expected duplicate, got first=%v err=%v", first, err)
	}

	assertExpectations(t, pool)
}

func TestNumericConversionKeepsScale(t *testing.T) {
	for _, s := range []string{"0.01", "12.5", "100", "-40.25", "123456789012345678.99"} {
		d := decimal.RequireFromString(s)
		if got := numericToDecimal(decimalToNumeric(d)); !got.Equal(d) {
			t.Errorf("%s: got %s", s, got)
		}
	}

	if !numericToDecimal(pgtype.Numeric{}).IsZero() {
		t.Error("expected invalid numeric to be zero")
	}
}
