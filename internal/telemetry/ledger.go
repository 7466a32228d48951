package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const ledgerScopeName = "github.com/duoink-tools/redeem/ledger"

// Ledger is the write surface of the code ledger.
type Ledger interface {
	Pending() []string
	MarkUsed(code string) error
	MarkError(code string) error
}

// InstrumentedLedger wraps a Ledger with OTel tracing and metrics.
// Every append gets a span and is counted in redeem.ledger.* metrics.
type InstrumentedLedger struct {
	inner  Ledger
	tracer trace.Tracer
	writes metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapLedger returns l decorated with OTel instrumentation.
// When telemetry is disabled, l is returned as-is.
func WrapLedger(l Ledger) Ledger {
	if !Enabled() {
		return l
	}
	m := Meter(ledgerScopeName)
	writes, _ := m.Int64Counter("redeem.ledger.writes",
		metric.WithDescription("Codes appended to the used or error ledger"),
	)
	dur, _ := m.Float64Histogram("redeem.ledger.write.duration",
		metric.WithDescription("Ledger append duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("redeem.ledger.errors",
		metric.WithDescription("Failed ledger appends"),
	)
	return &InstrumentedLedger{
		inner:  l,
		tracer: Tracer(ledgerScopeName),
		writes: writes,
		dur:    dur,
		errs:   errs,
	}
}

func (l *InstrumentedLedger) Pending() []string {
	return l.inner.Pending()
}

func (l *InstrumentedLedger) MarkUsed(code string) error {
	return l.MarkUsedContext(context.Background(), code)
}

func (l *InstrumentedLedger) MarkError(code string) error {
	return l.MarkErrorContext(context.Background(), code)
}

// MarkUsedContext is MarkUsed with the append span parented on ctx.
func (l *InstrumentedLedger) MarkUsedContext(ctx context.Context, code string) error {
	return l.record(ctx, "used", func() error { return l.inner.MarkUsed(code) })
}

// MarkErrorContext is MarkError with the append span parented on ctx.
func (l *InstrumentedLedger) MarkErrorContext(ctx context.Context, code string) error {
	return l.record(ctx, "error", func() error { return l.inner.MarkError(code) })
}

func (l *InstrumentedLedger) record(ctx context.Context, file string, fn func() error) error {
	attrs := []attribute.KeyValue{attribute.String("ledger.file", file)}
	ctx, span := l.tracer.Start(ctx, "ledger.append",
		trace.WithAttributes(attrs...),
	)
	start := time.Now()
	err := fn()
	l.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	l.writes.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
	return err
}
