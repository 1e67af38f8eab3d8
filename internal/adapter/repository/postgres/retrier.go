package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SQLSTATE codes worth another attempt: the transaction lost a race and
// nothing was written.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// Retrier implements usecase.Retrier: it reruns an operation with jittered
// exponential backoff while the failure is a transient conflict.
type Retrier struct {
	maxRetries int
	policy     func() *backoff.ExponentialBackOff
	logger     *zerolog.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithMaxRetries caps the retries after the first attempt.
func WithMaxRetries(n int) RetrierOption {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithBackoff sets the initial and maximum wait between attempts.
func WithBackoff(initial, maxInterval time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.policy = func() *backoff.ExponentialBackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxInterval
			b.MaxElapsedTime = 0
			return b
		}
	}
}

// NewRetrier returns a Retrier allowing three retries between 50ms and 1s
// apart. A nil logger means the global logger.
func NewRetrier(logger *zerolog.Logger, opts ...RetrierOption) *Retrier {
	if logger == nil {
		logger = &log.Logger
	}
	r := &Retrier{maxRetries: 3, logger: logger}
	WithBackoff(50*time.Millisecond, time.Second)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retry runs operation until it succeeds, fails permanently, exhausts the
// retries or ctx is done. The last operation error is returned.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	attempt := 0
	b := backoff.WithMaxRetries(r.policy(), uint64(max(r.maxRetries, 0)))

	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		if attempt <= r.maxRetries {
			r.logger.Warn().Err(err).Int("attempt", attempt).Msg("transient database error, retrying")
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// isRetryableError reports whether err is a lost race (deadlock,
// serialization failure) or a connection failure that happened before the
// statement reached the server.
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrDeadlock || pgErr.Code == pgErrSerializationFailure
	}
	return pgconn.SafeToRetry(err)
}
