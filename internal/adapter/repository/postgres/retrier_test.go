package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func fastRetrier(opts ...RetrierOption) *Retrier {
	logger := zerolog.Nop()
	opts = append([]RetrierOption{WithBackoff(time.Millisecond, 2*time.Millisecond)}, opts...)
	return NewRetrier(&logger, opts...)
}

func TestRetrierRecoversFromDeadlock(t *testing.T) {
	attempts := 0
	err := fastRetrier().Retry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return &pgconn.PgError{Code: pgErrDeadlock}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRetrierDoesNotRetryConstraintViolation(t *testing.T) {
	attempts := 0
	uniqueViolation := &pgconn.PgError{Code: "23505"}

	err := fastRetrier().Retry(context.Background(), func() error {
		attempts++
		return uniqueViolation
	})
	if !errors.Is(err, uniqueViolation) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := fastRetrier(WithMaxRetries(2)).Retry(context.Background(), func() error {
		attempts++
		return fmt.Errorf("apply delta: %w", &pgconn.PgError{Code: pgErrSerializationFailure})
	})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgErrSerializationFailure {
		t.Fatalf("expected serialization failure, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetrierStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := fastRetrier(WithMaxRetries(10)).Retry(ctx, func() error {
		attempts++
		cancel()
		return &pgconn.PgError{Code: pgErrDeadlock}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, true},
		{"serialization", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgErrSerializationFailure}), true},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryableError(tc.err); got != tc.want {
				t.Fatalf("isRetryableError = %v, want %v", got, tc.want)
			}
		})
	}
}
