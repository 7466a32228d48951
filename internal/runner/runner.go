// Package runner orchestrates a redemption run: it walks the pending codes
// over one authenticated session, applies the ledger policy to each outcome
// and stops early when the account hits its daily limit.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/duoink-tools/redeem/internal/debug"
	"github.com/duoink-tools/redeem/internal/redeem"
	"github.com/duoink-tools/redeem/internal/telemetry"
	"github.com/duoink-tools/redeem/internal/types"
)

const scopeName = "github.com/duoink-tools/redeem/runner"

// ErrSessionUnavailable is returned when no authenticated session could be
// established.
var ErrSessionUnavailable = errors.New("session unavailable")

// Ledger is the slice of the code ledger the runner needs.
type Ledger interface {
	Pending() []string
	MarkUsed(code string) error
	MarkError(code string) error
}

// contextLedger is implemented by ledgers that trace appends under the
// attempt that caused them.
type contextLedger interface {
	MarkUsedContext(ctx context.Context, code string) error
	MarkErrorContext(ctx context.Context, code string) error
}

// Session is an authenticated page owned by the runner for the whole run.
type Session interface {
	redeem.Page
	Close() error
}

// SessionFactory establishes the authenticated session.
type SessionFactory interface {
	AcquireSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

func (f SessionFactoryFunc) AcquireSession(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Attempter runs one code through the redemption dialog.
type Attempter interface {
	Attempt(ctx context.Context, page redeem.Page, code string) types.Outcome
}

// StopReason says why a run ended.
type StopReason string

const (
	StopCompleted   StopReason = "completed"
	StopNoWork      StopReason = "no_work"
	StopDailyLimit  StopReason = "daily_limit"
	StopInterrupted StopReason = "interrupted"
	StopFailed      StopReason = "failed"
)

// Report summarizes a run.
type Report struct {
	RunID     string             `json:"run_id"`
	Pending   int                `json:"pending"`
	Attempted int                `json:"attempted"`
	Counts    map[types.Kind]int `json:"counts"`
	Stop      StopReason         `json:"stop"`
	// Untouched lists the pending codes that were never attempted.
	Untouched []string      `json:"untouched,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Progress is reported after every attempt.
type Progress struct {
	Index   int // 1-based
	Total   int
	Code    string
	Outcome types.Outcome
	Action  Action
}

// Runner drives pending codes through an Attempter. It holds no state
// between runs except its configuration.
type Runner struct {
	attempter Attempter
	delay     time.Duration
	grace     time.Duration
	sleep     func(context.Context, time.Duration) error
	log       *slog.Logger
	runID     string
	progress  func(Progress)

	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Runner.
type Option func(*Runner)

// WithDelay sets the pause between consecutive codes.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

// WithGrace sets the pause before the session is closed after a normal
// finish or a daily-limit stop.
func WithGrace(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// WithSleep replaces the delay implementation (tests).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// WithProgress registers a callback invoked after every attempt.
func WithProgress(fn func(Progress)) Option {
	return func(r *Runner) { r.progress = fn }
}

// New returns a Runner that hands each code to a.
func New(a Attempter, opts ...Option) *Runner {
	r := &Runner{
		attempter: a,
		delay:     2 * time.Second,
		grace:     10 * time.Second,
		sleep:     redeem.Sleep,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}

	m := telemetry.Meter(scopeName)
	r.tracer = telemetry.Tracer(scopeName)
	r.attempts, _ = m.Int64Counter("redeem.attempts",
		metric.WithDescription("Redemption attempts by outcome"),
	)
	r.duration, _ = m.Float64Histogram("redeem.attempt.duration",
		metric.WithDescription("Redemption attempt duration"),
		metric.WithUnit("s"),
	)
	return r
}

// RunID returns the identifier stamped on logs, events and the report.
func (r *Runner) RunID() string { return r.runID }

// Run processes every pending code in l. The returned report is never nil.
// An error means the run could not continue safely: the session could not
// be established or the ledger could not be written.
func (r *Runner) Run(ctx context.Context, l Ledger, factory SessionFactory) (*Report, error) {
	start := time.Now()
	pending := l.Pending()
	report := &Report{
		RunID:   r.runID,
		Pending: len(pending),
		Counts:  make(map[types.Kind]int),
	}
	log := r.log.With("run_id", r.runID)
	defer func() { report.Duration = time.Since(start) }()

	if len(pending) == 0 {
		log.Info("no pending codes")
		report.Stop = StopNoWork
		debug.LogEvent("run.stop", "", r.runID, string(StopNoWork))
		return report, nil
	}

	log.Info("starting run", "pending", len(pending))
	debug.LogEvent("run.start", "", r.runID, fmt.Sprintf("pending=%d", len(pending)))

	session, err := factory.AcquireSession(ctx)
	if err != nil {
		report.Stop = StopFailed
		report.Untouched = pending
		debug.LogEvent("run.stop", "", r.runID, "session: "+err.Error())
		return report, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	closed := false
	closeSession := func() {
		if closed {
			return
		}
		closed = true
		if err := session.Close(); err != nil {
			log.Warn("closing session", "err", err)
		}
	}
	defer closeSession()

	runErr := r.loop(ctx, log, l, session, pending, report)

	if report.Stop == StopCompleted || report.Stop == StopDailyLimit {
		log.Debug("grace period before closing the session", "grace", r.grace)
		_ = r.sleep(ctx, r.grace)
	}
	closeSession()

	log.Info("run finished", "stop", report.Stop, "attempted", report.Attempted, "untouched", len(report.Untouched))
	debug.LogEvent("run.stop", "", r.runID, string(report.Stop))
	return report, runErr
}

func (r *Runner) loop(ctx context.Context, log *slog.Logger, l Ledger, session Session, pending []string, report *Report) error {
	for i, code := range pending {
		if ctx.Err() != nil {
			report.Stop = StopInterrupted
			report.Untouched = pending[i:]
			return nil
		}

		actx, span := r.tracer.Start(ctx, "redeem.attempt",
			trace.WithAttributes(attribute.Int("index", i+1), attribute.Int("total", len(pending))),
		)
		out := r.attempt(actx, span, session, code, i+1, len(pending))
		report.Attempted++
		report.Counts[out.Kind()]++

		p := PolicyFor(out)
		err := r.apply(actx, l, p.Action, code)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if err != nil {
			report.Stop = StopFailed
			report.Untouched = pending[i+1:]
			debug.LogEvent("ledger.failed", code, r.runID, err.Error())
			return err
		}

		if r.progress != nil {
			r.progress(Progress{Index: i + 1, Total: len(pending), Code: code, Outcome: out, Action: p.Action})
		}

		if p.Control == Abort {
			log.Warn("daily limit reached, stopping", "code", code)
			report.Stop = StopDailyLimit
			report.Untouched = pending[i+1:]
			return nil
		}

		if i < len(pending)-1 {
			if err := r.sleep(ctx, r.delay); err != nil {
				report.Stop = StopInterrupted
				report.Untouched = pending[i+1:]
				return nil
			}
		}
	}
	report.Stop = StopCompleted
	return nil
}

// attempt runs one code and records its telemetry on span, which the caller
// ends once the outcome is in the ledger. A panic inside the attempter is
// contained as a transient error.
func (r *Runner) attempt(ctx context.Context, span trace.Span, page redeem.Page, code string, index, total int) (out types.Outcome) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("attempt panicked: %v", rec)
			r.log.Error("attempt panicked", "run_id", r.runID, "code", code, "panic", rec)
			out = types.TransientError{Text: err.Error(), Err: err}
		}
		if out == nil {
			out = types.UnknownError{}
		}

		attrs := metric.WithAttributes(attribute.String("outcome", string(out.Kind())))
		r.attempts.Add(ctx, 1, attrs)
		r.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.SetAttributes(attribute.String("outcome", string(out.Kind())))
		if te, ok := out.(types.TransientError); ok {
			if te.Err != nil {
				span.RecordError(te.Err)
			}
			span.SetStatus(codes.Error, te.Detail())
		}

		r.log.Info("attempt finished",
			"run_id", r.runID,
			"code", code,
			"index", index,
			"total", total,
			"outcome", out.Kind(),
			"detail", out.Detail(),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		debug.LogEvent("attempt."+string(out.Kind()), code, r.runID, types.Describe(out))
	}()

	debug.Logf("[%d/%d] attempting %s\n", index, total, code)
	return r.attempter.Attempt(ctx, page, code)
}

func (r *Runner) apply(ctx context.Context, l Ledger, a Action, code string) error {
	markUsed, markError := l.MarkUsed, l.MarkError
	if cl, ok := l.(contextLedger); ok {
		markUsed = func(code string) error { return cl.MarkUsedContext(ctx, code) }
		markError = func(code string) error { return cl.MarkErrorContext(ctx, code) }
	}

	switch a {
	case ActionMarkUsed:
		if err := markUsed(code); err != nil {
			return fmt.Errorf("record %s as used: %w", code, err)
		}
	case ActionMarkError:
		if err := markError(code); err != nil {
			return fmt.Errorf("record %s as invalid: %w", code, err)
		}
	}
	return nil
}
