package runner

import "github.com/duoink-tools/redeem/internal/types"

// Action is the ledger update applied after an attempt.
type Action int

const (
	ActionNone Action = iota
	ActionMarkUsed
	ActionMarkError
)

func (a Action) String() string {
	switch a {
	case ActionMarkUsed:
		return "mark_used"
	case ActionMarkError:
		return "mark_error"
	}
	return "none"
}

// Control says whether the run moves on to the next code.
type Control int

const (
	Continue Control = iota
	Abort
)

func (c Control) String() string {
	if c == Abort {
		return "abort"
	}
	return "continue"
}

// Policy is the reaction to one outcome.
type Policy struct {
	Action  Action
	Control Control
}

// PolicyFor maps an outcome to its ledger action and loop control.
// Codes that end in an unclassified state stay pending for the next run.
func PolicyFor(o types.Outcome) Policy {
	switch o.(type) {
	case types.Success, types.AlreadyInvited:
		return Policy{Action: ActionMarkUsed, Control: Continue}
	case types.InvalidCode:
		return Policy{Action: ActionMarkError, Control: Continue}
	case types.DailyLimitReached:
		return Policy{Action: ActionNone, Control: Abort}
	default:
		return Policy{Action: ActionNone, Control: Continue}
	}
}
