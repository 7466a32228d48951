// Package redeem drives a single invitation code through the redemption
// dialog of an authenticated page and classifies the result.
//
// An attempt moves through three states:
//
//	InputEntry                      find the code field, clear it, type, Enter
//	AwaitConfirmationOrDirectError  race the confirmation prompt against an error banner
//	AwaitOutcome                    settle, then error banner, success dialog, or nothing
//
// Every exit path leaves the page with no modal open.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duoink-tools/redeem/internal/types"
)

// Machine runs attempts. It holds no state between attempts.
type Machine struct {
	sel      Selectors
	inputs   ResolverChain
	timeouts Timeouts
	log      *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// Option configures a Machine.
type Option func(*Machine)

// WithSelectors overrides the page selectors.
func WithSelectors(s Selectors) Option {
	return func(m *Machine) { m.sel = s }
}

// WithTimeouts overrides the bounded waits.
func WithTimeouts(t Timeouts) Option {
	return func(m *Machine) { m.timeouts = t }
}

// WithResolvers replaces the input resolver chain built from the selectors.
func WithResolvers(c ResolverChain) Option {
	return func(m *Machine) { m.inputs = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithSleep replaces the settle delay implementation (tests).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(m *Machine) { m.sleep = fn }
}

// New returns a Machine with the duoink defaults.
func New(opts ...Option) *Machine {
	m := &Machine{
		sel:      DefaultSelectors(),
		timeouts: DefaultTimeouts(),
		log:      slog.New(slog.DiscardHandler),
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.inputs == nil {
		m.inputs = m.sel.InputChain(m.timeouts.Input)
	}
	return m
}

// Attempt submits code on page and returns its terminal classification.
// It never returns nil.
func (m *Machine) Attempt(ctx context.Context, page Page, code string) (out types.Outcome) {
	log := m.log.With("code", code)

	defer func() {
		// Cleanup must run even when the caller's context is gone.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeouts.Click+time.Second)
		defer cancel()
		if needsSnapshot(out) {
			m.snapshot(cctx, page, code, out, log)
		}
		m.dismissModals(cctx, page, log)
	}()

	if o := m.enterCode(ctx, page, code, log); o != nil {
		return o
	}
	if o := m.awaitConfirmation(ctx, page, log); o != nil {
		return o
	}
	return m.awaitOutcome(ctx, page, log)
}

// enterCode is the InputEntry state. It returns nil when the code was
// submitted.
func (m *Machine) enterCode(ctx context.Context, page Page, code string, log *slog.Logger) types.Outcome {
	input, via, err := m.inputs.Resolve(ctx, page)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("invitation input not found")
			return types.UnknownError{Text: "invitation input not found"}
		}
		return transient("locate input", err)
	}
	log.Debug("found invitation input", "via", via)

	// Clearing is best-effort: the clear button only exists once the field
	// has content.
	if btn, err := firstVisible(ctx, page, m.sel.ClearButton); err == nil && btn != nil {
		if err := btn.Click(ctx); err != nil {
			log.Debug("clear button click failed", "err", err)
		}
	}
	if err := input.Clear(ctx); err != nil {
		log.Debug("input clear failed", "err", err)
	}
	if err := input.Press(ctx, "Control+a"); err != nil {
		log.Debug("select-all failed", "err", err)
	}
	if err := input.Press(ctx, "Delete"); err != nil {
		log.Debug("delete failed", "err", err)
	}

	if err := input.Type(ctx, code); err != nil {
		return transient("type code", err)
	}
	if err := input.Press(ctx, "Enter"); err != nil {
		return transient("submit code", err)
	}
	log.Debug("submitted code")
	return nil
}

// awaitConfirmation is the AwaitConfirmationOrDirectError state. It returns
// nil once the confirmation prompt has been acknowledged.
func (m *Machine) awaitConfirmation(ctx context.Context, page Page, log *slog.Logger) types.Outcome {
	idx, _, err := firstOf(ctx, m.timeouts.Confirm, m.timeouts.Poll,
		visibleProbe(page, "confirmation", m.sel.ConfirmDialog),
		visibleProbe(page, "error", m.sel.ErrorBanner),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("no confirmation prompt or error message appeared")
			return types.NoResponse{}
		}
		return transient("await confirmation", err)
	}

	if idx == 1 {
		o, err := m.checkErrors(ctx, page, log)
		if err != nil {
			return transient("read error message", err)
		}
		if o == nil {
			// The banner was visible but carried no text.
			o = types.UnknownError{}
		}
		log.Info("direct error", "outcome", o.Kind(), "text", o.Detail())
		return o
	}

	log.Debug("confirmation prompt appeared")
	btn, err := page.Find(ctx, m.sel.ConfirmButton, Visible, m.timeouts.Click)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.UnknownError{Text: "confirm button not found"}
		}
		return transient("find confirm button", err)
	}
	if err := btn.Click(ctx); err != nil {
		return transient("click confirm", err)
	}
	log.Debug("clicked confirm")
	return nil
}

// awaitOutcome is the AwaitOutcome state.
func (m *Machine) awaitOutcome(ctx context.Context, page Page, log *slog.Logger) types.Outcome {
	if err := m.sleep(ctx, m.timeouts.Settle); err != nil {
		return transient("settle", err)
	}

	o, err := m.checkErrors(ctx, page, log)
	if err != nil {
		return transient("read error messages", err)
	}
	if o != nil {
		return o
	}

	_, err = page.Find(ctx, m.sel.SuccessDialog, Visible, m.timeouts.Success)
	if err == nil {
		if ok, err := page.Find(ctx, m.sel.OKButton, Visible, m.timeouts.Click); err != nil {
			log.Warn("success dialog without OK button", "err", err)
		} else if err := ok.Click(ctx); err != nil {
			log.Warn("could not acknowledge success dialog", "err", err)
		}
		log.Info("redemption successful")
		return types.Success{}
	}
	if !errors.Is(err, ErrNotFound) {
		return transient("await success dialog", err)
	}

	log.Debug("success dialog did not appear, re-checking errors")
	o, err = m.checkErrors(ctx, page, log)
	if err != nil {
		return transient("re-check error messages", err)
	}
	if o != nil {
		return o
	}
	log.Warn("could not detect any outcome after confirming")
	return types.UnknownError{}
}

// checkErrors classifies the visible error banners on the page. Hidden
// banners are leftovers from earlier dialogs and are ignored. A recognized
// banner wins over unrecognized ones. It returns nil when no visible banner
// carries text.
func (m *Machine) checkErrors(ctx context.Context, page Page, log *slog.Logger) (types.Outcome, error) {
	els, err := page.FindAll(ctx, m.sel.ErrorBanner)
	if err != nil {
		return nil, err
	}

	var unknown types.Outcome
	for _, el := range els {
		visible, err := el.Visible(ctx)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		o := Classify(text)
		if Recognized(o) {
			log.Info("error message", "outcome", o.Kind(), "text", o.Detail())
			m.dismissError(ctx, page, log)
			return o, nil
		}
		if unknown == nil {
			unknown = o
		}
	}
	if unknown != nil {
		log.Warn("unrecognized error message", "text", unknown.Detail())
	}
	return unknown, nil
}

// dismissError clicks Cancel on the error dialog. Failure only logs.
func (m *Machine) dismissError(ctx context.Context, page Page, log *slog.Logger) {
	btn, err := page.Find(ctx, m.sel.CancelButton, Visible, m.timeouts.Click)
	if err != nil {
		log.Warn("no cancel button for error dialog", "err", err)
		return
	}
	if err := btn.Click(ctx); err != nil {
		log.Warn("could not dismiss error dialog", "err", err)
	}
}

// dismissModals closes whatever dialog is still open so the next attempt
// starts from the input field.
func (m *Machine) dismissModals(ctx context.Context, page Page, log *slog.Logger) {
	open := false
	for _, sel := range []string{m.sel.ConfirmDialog, m.sel.SuccessDialog} {
		el, err := firstVisible(ctx, page, sel)
		if err != nil {
			log.Debug("modal probe failed", "err", err)
			return
		}
		if el != nil {
			open = true
			break
		}
	}
	if !open {
		return
	}

	for _, sel := range []string{m.sel.CancelButton, m.sel.OKButton} {
		btn, err := firstVisible(ctx, page, sel)
		if err != nil || btn == nil {
			continue
		}
		if err := btn.Click(ctx); err == nil {
			log.Debug("dismissed leftover dialog")
			return
		}
	}
	if err := page.PressKey(ctx, "Escape"); err != nil {
		log.Warn("could not dismiss leftover dialog", "err", err)
	}
}

func (m *Machine) snapshot(ctx context.Context, page Page, code string, o types.Outcome, log *slog.Logger) {
	name := SnapshotName(o.Kind(), code)
	if err := page.Snapshot(ctx, name); err != nil {
		log.Warn("diagnostic snapshot failed", "name", name, "err", err)
		return
	}
	log.Debug("saved diagnostic snapshot", "name", name)
}

func needsSnapshot(o types.Outcome) bool {
	switch o.(type) {
	case types.UnknownError, types.NoResponse, types.TransientError:
		return true
	}
	return false
}

// SnapshotName builds a file-system safe snapshot name for an outcome.
func SnapshotName(kind types.Kind, code string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, code)
	return fmt.Sprintf("%s_%s", kind, safe)
}

func transient(step string, err error) types.Outcome {
	return types.TransientError{Text: fmt.Sprintf("%s: %v", step, err), Err: err}
}
