package redeem

import (
	"strings"

	"github.com/duoink-tools/redeem/internal/types"
	"github.com/duoink-tools/redeem/internal/util"
)

// phraseRule maps a family of page messages, in either language the site
// emits, to one outcome kind.
type phraseRule struct {
	kind    types.Kind
	phrases []string
}

// Rules are evaluated top to bottom; the first match wins.
var phraseRules = []phraseRule{
	{
		kind: types.KindInvalidCode,
		phrases: []string{
			"cannot find referrer",
			"can't find referrer",
			"can not find referrer",
			"no owner found for this code",
			"找不到邀请人",
		},
	},
	{
		kind: types.KindAlreadyInvited,
		phrases: []string{
			"already invited by this referrer",
			"already been invited",
			"do not invite repeatedly",
			"已经被该邀请人邀请过了",
			"请不要重复邀请",
		},
	},
	{
		kind: types.KindDailyLimitReached,
		phrases: []string{
			"redeemed too much",
			"try tomorrow",
			"try again tomorrow",
			"明天再试",
		},
	},
}

// Classify maps an error message to an outcome. Unrecognized text, including
// empty text, becomes UnknownError carrying the original message.
func Classify(text string) types.Outcome {
	raw := strings.TrimSpace(text)
	norm := util.CollapseSpace(raw)
	if norm != "" {
		for _, rule := range phraseRules {
			for _, p := range rule.phrases {
				if strings.Contains(norm, p) {
					return outcomeOf(rule.kind, raw)
				}
			}
		}
	}
	return types.UnknownError{Text: raw}
}

// Recognized reports whether o came from a known phrase family.
func Recognized(o types.Outcome) bool {
	switch o.(type) {
	case types.InvalidCode, types.AlreadyInvited, types.DailyLimitReached:
		return true
	}
	return false
}

func outcomeOf(kind types.Kind, text string) types.Outcome {
	switch kind {
	case types.KindInvalidCode:
		return types.InvalidCode{Text: text}
	case types.KindAlreadyInvited:
		return types.AlreadyInvited{Text: text}
	case types.KindDailyLimitReached:
		return types.DailyLimitReached{Text: text}
	}
	return types.UnknownError{Text: text}
}
