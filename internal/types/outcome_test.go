package types

import (
	"errors"
	"testing"
)

func TestKindIsValid(t *testing.T) {
	for _, k := range AllKinds {
		if !k.IsValid() {
			t.Errorf("Kind(%q).IsValid() = false, want true", k)
		}
	}
	if Kind("redeemed").IsValid() {
		t.Error("unexpected valid kind \"redeemed\"")
	}
}

func TestSampleCoversEveryKind(t *testing.T) {
	seen := make(map[Kind]bool)
	for _, k := range AllKinds {
		o := Sample(k)
		if o == nil {
			t.Fatalf("Sample(%q) returned nil", k)
		}
		if o.Kind() != k {
			t.Errorf("Sample(%q).Kind() = %q", k, o.Kind())
		}
		if seen[k] {
			t.Errorf("duplicate kind %q in AllKinds", k)
		}
		seen[k] = true
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		in   Outcome
		want string
	}{
		{"success", Success{}, "success"},
		{"with text", InvalidCode{Text: "Cannot find referrer"}, "invalid_code: Cannot find referrer"},
		{"unknown outcome", UnknownError{}, "unknown_outcome"},
		{"no response", NoResponse{}, "no_response"},
		{"transient from err", TransientError{Err: errors.New("target closed")}, "transient_error: target closed"},
		{"nil", nil, "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.in); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransientErrorKeepsCause(t *testing.T) {
	base := errors.New("browser has been closed")
	var o Outcome = TransientError{Err: base}
	te, ok := o.(TransientError)
	if !ok {
		t.Fatalf("expected TransientError, got %T", o)
	}
	if !errors.Is(te.Err, base) {
		t.Error("TransientError lost its cause")
	}
	if got := te.Detail(); got != base.Error() {
		t.Errorf("Detail() = %q, want %q", got, base.Error())
	}
}
