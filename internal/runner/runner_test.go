package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/duoink-tools/redeem/internal/ledger"
	"github.com/duoink-tools/redeem/internal/redeem"
	"github.com/duoink-tools/redeem/internal/types"
)

// stubSession satisfies Session without a browser.
type stubSession struct {
	closed int
}

func (s *stubSession) Find(context.Context, string, redeem.State, time.Duration) (redeem.Element, error) {
	return nil, redeem.ErrNotFound
}
func (s *stubSession) FindAll(context.Context, string) ([]redeem.Element, error) { return nil, nil }
func (s *stubSession) PressKey(context.Context, string) error                    { return nil }
func (s *stubSession) Snapshot(context.Context, string) error                    { return nil }
func (s *stubSession) Close() error {
	s.closed++
	return nil
}

// scripted returns a fixed outcome per code and records the order of calls.
type scripted struct {
	outcomes map[string]types.Outcome
	seen     []string
	hook     func(code string)
}

func (a *scripted) Attempt(_ context.Context, _ redeem.Page, code string) types.Outcome {
	a.seen = append(a.seen, code)
	if a.hook != nil {
		a.hook(code)
	}
	if o, ok := a.outcomes[code]; ok {
		return o
	}
	return types.Success{}
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	var data string
	for _, l := range lines {
		data += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

// setupLedger creates all={A,B,C,...}, used={A}, errored={B}.
func setupLedger(t *testing.T, all ...string) *ledger.Ledger {
	t.Helper()
	dir := t.TempDir()
	paths := ledger.Paths{
		Invitation: filepath.Join(dir, ledger.DefaultInvitationFile),
		Used:       filepath.Join(dir, ledger.DefaultUsedFile),
		Error:      filepath.Join(dir, ledger.DefaultErrorFile),
	}
	writeLines(t, paths.Invitation, all...)
	writeLines(t, paths.Used, "A")
	writeLines(t, paths.Error, "B")
	l, err := ledger.Load(paths)
	require.NoError(t, err)
	return l
}

func reload(t *testing.T, l *ledger.Ledger) *ledger.Ledger {
	t.Helper()
	fresh, err := ledger.Load(l.Paths())
	require.NoError(t, err)
	return fresh
}

func newTestRunner(a Attempter, s *sleepRecorder, opts ...Option) *Runner {
	return New(a, append([]Option{
		WithDelay(2 * time.Second),
		WithGrace(10 * time.Second),
		WithSleep(s.sleep),
		WithRunID("test-run"),
	}, opts...)...)
}

func sessionOf(s *stubSession, acquired *int) SessionFactory {
	return SessionFactoryFunc(func(context.Context) (Session, error) {
		*acquired++
		return s, nil
	})
}

func TestPolicyForEveryKind(t *testing.T) {
	want := map[types.Kind]Policy{
		types.KindSuccess:           {ActionMarkUsed, Continue},
		types.KindInvalidCode:       {ActionMarkError, Continue},
		types.KindAlreadyInvited:    {ActionMarkUsed, Continue},
		types.KindDailyLimitReached: {ActionNone, Abort},
		types.KindUnknownError:      {ActionNone, Continue},
		types.KindNoResponse:        {ActionNone, Continue},
		types.KindTransientError:    {ActionNone, Continue},
	}
	require.Len(t, want, len(types.AllKinds))

	for _, k := range types.AllKinds {
		t.Run(string(k), func(t *testing.T) {
			p, ok := want[k]
			require.True(t, ok, "no expected policy for %s", k)
			assert.Equal(t, p, PolicyFor(types.Sample(k)))
		})
	}
}

func TestRunNoWorkSkipsSession(t *testing.T) {
	l := setupLedger(t, "A", "B")
	acquired := 0
	s := &sleepRecorder{}

	report, err := newTestRunner(&scripted{}, s).Run(context.Background(), l, sessionOf(&stubSession{}, &acquired))

	require.NoError(t, err)
	assert.Equal(t, StopNoWork, report.Stop)
	assert.Equal(t, 0, acquired)
	assert.Empty(t, s.calls)
	assert.Equal(t, "test-run", report.RunID)
}

func TestRunSuccessMarksUsed(t *testing.T) {
	l := setupLedger(t, "A", "B", "C")
	require.Equal(t, []string{"C"}, l.Pending())
	session := &stubSession{}
	acquired := 0
	s := &sleepRecorder{}

	report, err := newTestRunner(&scripted{}, s).Run(context.Background(), l, sessionOf(session, &acquired))

	require.NoError(t, err)
	assert.Equal(t, StopCompleted, report.Stop)
	assert.Equal(t, 1, report.Counts[types.KindSuccess])

	after := reload(t, l)
	assert.True(t, after.IsUsed("A"))
	assert.True(t, after.IsUsed("C"))
	assert.True(t, after.IsErrored("B"))
	assert.Empty(t, after.Pending())

	// One code: no inter-attempt delay, only the grace period.
	assert.Equal(t, []time.Duration{10 * time.Second}, s.calls)
	assert.Equal(t, 1, session.closed)
}

func TestRunDailyLimitStops(t *testing.T) {
	l := setupLedger(t, "A", "B", "C", "D", "E")
	a := &scripted{outcomes: map[string]types.Outcome{
		"D": types.DailyLimitReached{Text: "redeemed too much, please try tomorrow!"},
	}}
	session := &stubSession{}
	acquired := 0
	s := &sleepRecorder{}

	report, err := newTestRunner(a, s).Run(context.Background(), l, sessionOf(session, &acquired))

	require.NoError(t, err)
	assert.Equal(t, StopDailyLimit, report.Stop)
	assert.Equal(t, []string{"C", "D"}, a.seen)
	assert.Equal(t, []string{"E"}, report.Untouched)

	after := reload(t, l)
	assert.False(t, after.IsUsed("D"))
	assert.False(t, after.IsErrored("D"))
	assert.ElementsMatch(t, []string{"D", "E"}, after.Pending())

	// Delay after C only, then grace.
	assert.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second}, s.calls)
	assert.Equal(t, 1, session.closed)
}

func TestRunUnclassifiedOutcomesStayPending(t *testing.T) {
	l := setupLedger(t, "A", "B", "C", "D", "E", "F")
	a := &scripted{outcomes: map[string]types.Outcome{
		"C": types.NoResponse{},
		"D": types.UnknownError{Text: "Server busy"},
		"E": types.TransientError{Text: "page closed", Err: errors.New("page closed")},
		"F": types.InvalidCode{Text: "Cannot find referrer"},
	}}
	acquired := 0

	report, err := newTestRunner(a, &sleepRecorder{}).Run(context.Background(), l, sessionOf(&stubSession{}, &acquired))

	require.NoError(t, err)
	assert.Equal(t, StopCompleted, report.Stop)
	assert.Equal(t, 4, report.Attempted)

	after := reload(t, l)
	assert.ElementsMatch(t, []string{"C", "D", "E"}, after.Pending())
	assert.True(t, after.IsErrored("F"))
}

func TestRunAlreadyInvitedMarksUsed(t *testing.T) {
	l := setupLedger(t, "A", "B", "C")
	a := &scripted{outcomes: map[string]types.Outcome{"C": types.AlreadyInvited{Text: "请不要重复邀请"}}}
	acquired := 0

	_, err := newTestRunner(a, &sleepRecorder{}).Run(context.Background(), l, sessionOf(&stubSession{}, &acquired))

	require.NoError(t, err)
	assert.True(t, reload(t, l).IsUsed("C"))
}

func TestRunSessionFailureIsFatal(t *testing.T) {
	l := setupLedger(t, "A", "B", "C")
	boom := errors.New("login timed out")
	a := &scripted{}

	report, err := newTestRunner(a, &sleepRecorder{}).Run(context.Background(), l,
		SessionFactoryFunc(func(context.Context) (Session, error) { return nil, boom }))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StopFailed, report.Stop)
	assert.Equal(t, []string{"C"}, report.Untouched)
	assert.Empty(t, a.seen)
}

type failingLedger struct {
	pending []string
	err     error
}

func (f *failingLedger) Pending() []string    { return f.pending }
func (f *failingLedger) MarkUsed(string) error { return f.err }
func (f *failingLedger) MarkError(string) error {
	return f.err
}

func TestRunLedgerFailureAborts(t *testing.T) {
	disk := errors.New("no space left on device")
	l := &failingLedger{pending: []string{"X", "Y"}, err: disk}
	session := &stubSession{}
	acquired := 0
	a := &scripted{}
	s := &sleepRecorder{}

	report, err := newTestRunner(a, s).Run(context.Background(), l, sessionOf(session, &acquired))

	assert.ErrorIs(t, err, disk)
	assert.Equal(t, StopFailed, report.Stop)
	assert.Equal(t, []string{"X"}, a.seen)
	assert.Equal(t, []string{"Y"}, report.Untouched)
	assert.Empty(t, s.calls, "no delay or grace after a ledger failure")
	assert.Equal(t, 1, session.closed)
}

func TestRunInterruptedBetweenCodes(t *testing.T) {
	l := setupLedger(t, "A", "B", "C", "D", "E")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &scripted{hook: func(code string) {
		if code == "C" {
			cancel()
		}
	}}
	session := &stubSession{}
	acquired := 0

	report, err := newTestRunner(a, &sleepRecorder{}).Run(ctx, l, sessionOf(session, &acquired))

	require.NoError(t, err)
	assert.Equal(t, StopInterrupted, report.Stop)
	assert.Equal(t, []string{"C"}, a.seen)
	assert.Equal(t, []string{"D", "E"}, report.Untouched)
	assert.True(t, reload(t, l).IsUsed("C"), "the finished attempt is still recorded")
	assert.Equal(t, 1, session.closed)
}

type panicky struct{}

func (panicky) Attempt(context.Context, redeem.Page, string) types.Outcome {
	panic("nil locator")
}

func TestRunContainsPanics(t *testing.T) {
	l := setupLedger(t, "A", "B", "C", "D")
	var seen []types.Outcome
	acquired := 0

	report, err := newTestRunner(panicky{}, &sleepRecorder{},
		WithProgress(func(p Progress) { seen = append(seen, p.Outcome) }),
	).Run(context.Background(), l, sessionOf(&stubSession{}, &acquired))

	require.NoError(t, err)
	assert.Equal(t, StopCompleted, report.Stop)
	assert.Equal(t, 2, report.Counts[types.KindTransientError])
	require.Len(t, seen, 2)
	assert.Contains(t, seen[0].Detail(), "nil locator")
	assert.ElementsMatch(t, []string{"C", "D"}, reload(t, l).Pending())
}

func TestRunProgressReportsAction(t *testing.T) {
	l := setupLedger(t, "A", "B", "C", "D")
	a := &scripted{outcomes: map[string]types.Outcome{"D": types.InvalidCode{Text: "Cannot find referrer"}}}
	var got []Progress
	acquired := 0

	_, err := newTestRunner(a, &sleepRecorder{},
		WithProgress(func(p Progress) { got = append(got, p) }),
	).Run(context.Background(), l, sessionOf(&stubSession{}, &acquired))

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Progress{Index: 1, Total: 2, Code: "C", Outcome: types.Success{}, Action: ActionMarkUsed}, got[0])
	assert.Equal(t, ActionMarkError, got[1].Action)
	assert.Equal(t, 2, got[1].Index)
}

func TestNewGeneratesRunID(t *testing.T) {
	a := New(&scripted{})
	b := New(&scripted{})
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

// tracingLedger records the span context each append was made under.
type tracingLedger struct {
	pending []string
	parents []trace.SpanContext
}

var errNoContext = errors.New("append without context")

func (l *tracingLedger) Pending() []string      { return l.pending }
func (l *tracingLedger) MarkUsed(string) error  { return errNoContext }
func (l *tracingLedger) MarkError(string) error { return errNoContext }

func (l *tracingLedger) MarkUsedContext(ctx context.Context, _ string) error {
	l.parents = append(l.parents, trace.SpanContextFromContext(ctx))
	return nil
}

func (l *tracingLedger) MarkErrorContext(ctx context.Context, _ string) error {
	l.parents = append(l.parents, trace.SpanContextFromContext(ctx))
	return nil
}

func TestRunLedgerWritesUnderAttemptSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	l := &tracingLedger{pending: []string{"C", "D"}}
	a := &scripted{outcomes: map[string]types.Outcome{
		"D": types.InvalidCode{Text: "Cannot find referrer"},
	}}
	acquired := 0

	report, err := newTestRunner(a, &sleepRecorder{}).Run(context.Background(), l, sessionOf(&stubSession{}, &acquired))

	require.NoError(t, err)
	assert.Equal(t, StopCompleted, report.Stop)

	var attempts []trace.SpanContext
	for _, span := range sr.Ended() {
		if span.Name() == "redeem.attempt" {
			attempts = append(attempts, span.SpanContext())
		}
	}
	require.Len(t, attempts, 2)
	require.Len(t, l.parents, 2)
	for i := range attempts {
		assert.True(t, l.parents[i].IsValid())
		assert.Equal(t, attempts[i].SpanID(), l.parents[i].SpanID())
	}
}
