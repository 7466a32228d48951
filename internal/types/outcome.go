// Package types defines the core data structures shared by the ledger,
// the redemption state machine and the runner.
package types

import "fmt"

// Kind is the stable label of an outcome variant. It is used in log records,
// the events log, JSON output and metric attributes.
type Kind string

// Outcome kinds
const (
	KindSuccess           Kind = "success"
	KindInvalidCode       Kind = "invalid_code"
	KindAlreadyInvited    Kind = "already_invited"
	KindDailyLimitReached Kind = "daily_limit_reached"
	KindUnknownError      Kind = "unknown_error"
	KindNoResponse        Kind = "no_response"
	KindTransientError    Kind = "transient_error"
)

// AllKinds lists every outcome kind in declaration order.
var AllKinds = []Kind{
	KindSuccess,
	KindInvalidCode,
	KindAlreadyInvited,
	KindDailyLimitReached,
	KindUnknownError,
	KindNoResponse,
	KindTransientError,
}

// IsValid checks if the kind is one of the built-in outcome kinds
func (k Kind) IsValid() bool {
	switch k {
	case KindSuccess, KindInvalidCode, KindAlreadyInvited, KindDailyLimitReached,
		KindUnknownError, KindNoResponse, KindTransientError:
		return true
	}
	return false
}

// Outcome is the terminal classification of one redemption attempt.
//
// The set of implementations is closed: only the variants declared in this
// file satisfy it. Consumers switch on the concrete type.
type Outcome interface {
	Kind() Kind
	// Detail returns the raw message detected on the page, if any.
	Detail() string
	isOutcome()
}

// Success means the code was accepted and the success dialog acknowledged.
type Success struct{}

// InvalidCode means the application reported that the code has no owner.
type InvalidCode struct{ Text string }

// AlreadyInvited means the account was already invited by this code's owner.
type AlreadyInvited struct{ Text string }

// DailyLimitReached means the account hit its redemption quota for the day.
type DailyLimitReached struct{ Text string }

// UnknownError covers unrecognized error text. An empty Text means no
// outcome could be detected at all after confirming.
type UnknownError struct{ Text string }

// NoResponse means neither a confirmation prompt nor an error appeared.
type NoResponse struct{}

// TransientError wraps a driver failure during the attempt (page closed,
// browser gone, context cancelled).
type TransientError struct {
	Text string
	Err  error
}

func (Success) Kind() Kind           { return KindSuccess }
func (InvalidCode) Kind() Kind       { return KindInvalidCode }
func (AlreadyInvited) Kind() Kind    { return KindAlreadyInvited }
func (DailyLimitReached) Kind() Kind { return KindDailyLimitReached }
func (UnknownError) Kind() Kind      { return KindUnknownError }
func (NoResponse) Kind() Kind        { return KindNoResponse }
func (TransientError) Kind() Kind    { return KindTransientError }

func (Success) Detail() string             { return "" }
func (o InvalidCode) Detail() string       { return o.Text }
func (o AlreadyInvited) Detail() string    { return o.Text }
func (o DailyLimitReached) Detail() string { return o.Text }
func (o UnknownError) Detail() string      { return o.Text }
func (NoResponse) Detail() string          { return "" }

func (o TransientError) Detail() string {
	if o.Text != "" {
		return o.Text
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return ""
}

func (Success) isOutcome()           {}
func (InvalidCode) isOutcome()       {}
func (AlreadyInvited) isOutcome()    {}
func (DailyLimitReached) isOutcome() {}
func (UnknownError) isOutcome()      {}
func (NoResponse) isOutcome()        {}
func (TransientError) isOutcome()    {}

// Describe renders an outcome as "kind" or "kind: detail" for log lines.
func Describe(o Outcome) string {
	if o == nil {
		return "<nil>"
	}
	if d := o.Detail(); d != "" {
		return fmt.Sprintf("%s: %s", o.Kind(), d)
	}
	if u, ok := o.(UnknownError); ok && u.Text == "" {
		return "unknown_outcome"
	}
	return string(o.Kind())
}

// Sample returns a representative value of the given kind. Tests and
// exhaustiveness checks iterate AllKinds through it.
func Sample(k Kind) Outcome {
	switch k {
	case KindSuccess:
		return Success{}
	case KindInvalidCode:
		return InvalidCode{Text: "Cannot find referrer"}
	case KindAlreadyInvited:
		return AlreadyInvited{Text: "请不要重复邀请"}
	case KindDailyLimitReached:
		return DailyLimitReached{Text: "redeemed too much, please try tomorrow!"}
	case KindUnknownError:
		return UnknownError{Text: "something unexpected"}
	case KindNoResponse:
		return NoResponse{}
	case KindTransientError:
		return TransientError{Text: "page closed"}
	}
	return nil
}
