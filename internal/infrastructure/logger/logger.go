package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Output  io.Writer
	Level   string // debug, info, warn, error
	Format  string // json, console
	Service string
}

// New creates a new zerolog logger based on config.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	ctx := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Caller()

	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}

	return ctx.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type correlationKey struct{}

// CorrelationIDField is the log field carrying the correlation id.
const CorrelationIDField = "correlation_id"

// WithCorrelationID stores id in ctx and attaches a child of the context
// logger (or base, when ctx has none) that logs it on every line.
func WithCorrelationID(ctx context.Context, base zerolog.Logger, id string) context.Context {
	ctx = context.WithValue(ctx, correlationKey{}, id)

	l := base
	if existing := zerolog.Ctx(ctx); existing.GetLevel() != zerolog.Disabled {
		l = *existing
	}

	l = l.With().Str(CorrelationIDField, id).Logger()
	return l.WithContext(ctx)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// FromContext returns the logger attached to ctx, falling back to fallback.
func FromContext(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
