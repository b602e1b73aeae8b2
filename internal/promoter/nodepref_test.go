package promoter

import (
	"testing"
	"time"
)

func TestNodePenalty_Scenario4_Alpha_FrontOfList(t *testing.T) {
	got := NodePenalty([]string{"alpha", "beta"}, "alpha")
	if got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestNodePenalty_Scenario4_Beta_SecondInList(t *testing.T) {
	got := NodePenalty([]string{"alpha", "beta"}, "beta")
	if got != 2*time.Second {
		t.Fatalf("got %v, want 2s", got)
	}
}

func TestNodePenalty_Scenario4_Gamma_Unlisted(t *testing.T) {
	got := NodePenalty([]string{"alpha", "beta"}, "gamma")
	if got != 6*time.Second {
		t.Fatalf("got %v, want 6s", got)
	}
}

func TestNodePenalty_EmptyPreferredNodes_UnlistedPenaltyIsTwoSeconds(t *testing.T) {
	got := NodePenalty(nil, "solo")
	if got != 2*time.Second {
		t.Fatalf("got %v, want 2s", got)
	}
}
