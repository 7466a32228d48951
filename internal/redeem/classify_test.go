package redeem

import (
	"testing"

	"github.com/duoink-tools/redeem/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want types.Kind
	}{
		// English
		{"Cannot find referrer", types.KindInvalidCode},
		{"Error: cannot  FIND referrer.", types.KindInvalidCode},
		{"No owner found for this code", types.KindInvalidCode},
		{"You have already been invited by this referrer", types.KindAlreadyInvited},
		{"Already invited by this referrer, do not invite repeatedly", types.KindAlreadyInvited},
		{"redeemed too much, please try tomorrow!", types.KindDailyLimitReached},
		{"You have Redeemed too MUCH today", types.KindDailyLimitReached},
		// Chinese
		{"您已经被该邀请人邀请过了", types.KindAlreadyInvited},
		{"请不要重复邀请", types.KindAlreadyInvited},
		{"兑换次数过多，请明天再试", types.KindDailyLimitReached},
		{"找不到邀请人", types.KindInvalidCode},
		// Anything else
		{"Internal server error", types.KindUnknownError},
		{"", types.KindUnknownError},
		{"   ", types.KindUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := Classify(tt.text)
			if got == nil {
				t.Fatal("Classify returned nil")
			}
			if got.Kind() != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.text, got.Kind(), tt.want)
			}
		})
	}
}

func TestClassifyKeepsRawText(t *testing.T) {
	got := Classify("  Weird   Message \n")
	u, ok := got.(types.UnknownError)
	if !ok {
		t.Fatalf("expected UnknownError, got %T", got)
	}
	if u.Text != "Weird   Message" {
		t.Errorf("Text = %q, want trimmed original", u.Text)
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	// Mentions both families; the invalid-code rule is listed first.
	got := Classify("Cannot find referrer, please try tomorrow")
	if got.Kind() != types.KindInvalidCode {
		t.Errorf("got %s, want %s", got.Kind(), types.KindInvalidCode)
	}
}

func TestPhraseRulesMapToDistinctKinds(t *testing.T) {
	seen := make(map[types.Kind]bool)
	for _, r := range phraseRules {
		if seen[r.kind] {
			t.Errorf("kind %s has two rules", r.kind)
		}
		seen[r.kind] = true
		if !Recognized(outcomeOf(r.kind, "x")) {
			t.Errorf("rule for %s does not produce a recognized outcome", r.kind)
		}
	}
}
