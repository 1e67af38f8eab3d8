package tracing

import (
	"context"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used across the pipeline.
const InstrumentationName = "github.com/iho/cashflow"

// traceParentHeader is the W3C header the outbox stores.
const traceParentHeader = "traceparent"

// Propagator encodes trace context and baggage. It does not depend on the
// global propagator so that producer and consumer agree regardless of setup.
var Propagator propagation.TextMapPropagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// HeaderCarrier adapts a broker header map to propagation.TextMapCarrier.
type HeaderCarrier map[string][]byte

var _ propagation.TextMapCarrier = HeaderCarrier(nil)

func (c HeaderCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	return string(v)
}

func (c HeaderCarrier) Set(key, value string) {
	c[key] = []byte(value)
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// TraceContext is the decoded view of propagated headers.
type TraceContext struct {
	Baggage map[string]string
	TraceID string
	SpanID  string
	Valid   bool
}

// Inject writes the span context and baggage of ctx into carrier.
func Inject(ctx context.Context, carrier HeaderCarrier) {
	Propagator.Inject(ctx, carrier)
}

// Extract decodes carrier. Missing or malformed headers yield an invalid
// TraceContext and ctx unchanged apart from baggage; it never fails.
func Extract(ctx context.Context, carrier HeaderCarrier) (context.Context, TraceContext) {
	ctx = Propagator.Extract(ctx, carrier)
	return ctx, FromContext(ctx)
}

// FromContext describes the remote or local span context carried by ctx.
func FromContext(ctx context.Context) TraceContext {
	sc := trace.SpanContextFromContext(ctx)

	tc := TraceContext{Valid: sc.IsValid()}
	if tc.Valid {
		tc.TraceID = sc.TraceID().String()
		tc.SpanID = sc.SpanID().String()
	}

	if members := baggage.FromContext(ctx).Members(); len(members) > 0 {
		tc.Baggage = make(map[string]string, len(members))
		for _, m := range members {
			tc.Baggage[m.Key()] = m.Value()
		}
	}

	return tc
}

// TraceParent renders the current span context as a W3C traceparent value,
// or "" when ctx carries no valid span.
func TraceParent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get(traceParentHeader)
}

// WithTraceParent returns ctx carrying the remote span described by tp.
// An empty or malformed tp returns ctx unchanged.
func WithTraceParent(ctx context.Context, tp string) context.Context {
	if tp == "" {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier{traceParentHeader: tp})
}
