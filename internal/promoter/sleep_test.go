package promoter

import (
	"testing"
	"time"

	"github.com/drbd-reactor-go/reactor/internal/model"
)

func TestDiskPenalty_TakesMaxAcrossDevices(t *testing.T) {
	got := DiskPenalty([]model.DiskState{model.DiskUpToDate, model.DiskOutdated, model.DiskConsistent})
	if got != 2*time.Second {
		t.Fatalf("got %v, want 2s", got)
	}
}

func TestDiskPenalty_WorstStatesAllWeighSix(t *testing.T) {
	for _, d := range []model.DiskState{
		model.DiskDiskless, model.DiskAttaching, model.DiskDetaching,
		model.DiskFailed, model.DiskNegotiating, model.DiskUnknown,
	} {
		if got := DiskPenalty([]model.DiskState{d}); got != 6*time.Second {
			t.Fatalf("disk state %v: got %v, want 6s", d, got)
		}
	}
}

func TestDiskPenalty_UpToDate_NoDelay(t *testing.T) {
	if got := DiskPenalty([]model.DiskState{model.DiskUpToDate}); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestSleepBeforePromote_Scenario4_Beta(t *testing.T) {
	got := SleepBeforePromote([]model.DiskState{model.DiskUpToDate}, 1, []string{"alpha", "beta"}, "beta")
	if got != 2*time.Second {
		t.Fatalf("got %v, want 2s", got)
	}
}

func TestSleepBeforePromote_Scenario4_UnlistedGamma(t *testing.T) {
	got := SleepBeforePromote([]model.DiskState{model.DiskUpToDate}, 1, []string{"alpha", "beta"}, "gamma")
	if got != 6*time.Second {
		t.Fatalf("got %v, want 6s", got)
	}
}

func TestSleepBeforePromote_FactorScalesDiskPenaltyOnly(t *testing.T) {
	got := SleepBeforePromote([]model.DiskState{model.DiskInconsistent}, 2, nil, "solo")
	// disk penalty 3s * factor 2 = 6s, plus node penalty for an empty
	// preferred-nodes list and an unlisted host: (0+1)*2 = 2s
	if got != 8*time.Second {
		t.Fatalf("got %v, want 8s", got)
	}
}
