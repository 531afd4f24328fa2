package provider

import (
	"context"
	"strings"
	"testing"
)

func TestUnconfiguredRejectsEverySend(t *testing.T) {
	s := Unconfigured("smoke-signals")
	out := s.Send(context.Background(), "+33612345678", "hello")
	if out.Kind != OutcomeRejected {
		t.Fatalf("kind = %v", out.Kind)
	}
	if !strings.Contains(out.Reason, "smoke-signals") {
		t.Fatalf("reason %q does not name the selector", out.Reason)
	}
}

func TestOutcomeKindStrings(t *testing.T) {
	cases := map[OutcomeKind]string{
		OutcomeSubmitted:        "submitted",
		OutcomeRejected:         "rejected",
		OutcomeTransportFailure: "transport_failure",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", k, got, want)
		}
	}
}
