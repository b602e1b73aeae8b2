package promoter

import (
	"testing"
	"time"
)

func TestIdle_MayPromoteTrue_ArmsSleepTimer(t *testing.T) {
	cfg := ResourceRuntimeConfig{SleepBeforePromote: 3 * time.Second}
	next, effects := Transition(StateIdle, EventMayPromoteTrue, cfg)
	if next != StateSleeping {
		t.Fatalf("next = %v, want Sleeping", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectArmSleepTimer || effects[0].SleepDuration != 3*time.Second {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestIdle_IgnoresUnrelatedEvents(t *testing.T) {
	next, effects := Transition(StateIdle, EventStopCompleted, ResourceRuntimeConfig{})
	if next != StateIdle || effects != nil {
		t.Fatalf("got (%v, %+v), want (Idle, nil)", next, effects)
	}
}

func TestSleeping_TimerFired_StartsTarget(t *testing.T) {
	next, effects := Transition(StateSleeping, EventSleepTimerFired, ResourceRuntimeConfig{})
	if next != StateStarting {
		t.Fatalf("next = %v, want Starting", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectStartTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestSleeping_MayPromoteFalse_ReturnsToIdle(t *testing.T) {
	next, effects := Transition(StateSleeping, EventMayPromoteFalse, ResourceRuntimeConfig{})
	if next != StateIdle || effects != nil {
		t.Fatalf("got (%v, %+v), want (Idle, nil)", next, effects)
	}
}

func TestStarting_StartSucceeded_GoesActive(t *testing.T) {
	next, effects := Transition(StateStarting, EventStartSucceeded, ResourceRuntimeConfig{})
	if next != StateActive || effects != nil {
		t.Fatalf("got (%v, %+v), want (Active, nil)", next, effects)
	}
}

func TestStarting_StartFailed_StopsAndReturnsToIdle(t *testing.T) {
	next, effects := Transition(StateStarting, EventStartFailed, ResourceRuntimeConfig{})
	if next != StateIdle {
		t.Fatalf("next = %v, want Idle", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectStopTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestStarting_PromotionLost_StopsAndReturnsToIdle(t *testing.T) {
	next, effects := Transition(StateStarting, EventPromotionLost, ResourceRuntimeConfig{})
	if next != StateIdle {
		t.Fatalf("next = %v, want Idle", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectStopTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestStarting_DemotionFailed_EscalatesWithoutChangingState(t *testing.T) {
	cfg := ResourceRuntimeConfig{OnDRBDDemoteFailure: "reboot"}
	next, effects := Transition(StateStarting, EventDemotionFailed, cfg)
	if next != StateStarting {
		t.Fatalf("next = %v, want Starting (unchanged)", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectEscalate || effects[0].EscalationAction != "reboot" {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_QuorumLost_WithoutFreezePolicy_Stops(t *testing.T) {
	next, effects := Transition(StateActive, EventQuorumLost, ResourceRuntimeConfig{})
	if next != StateStopping {
		t.Fatalf("next = %v, want Stopping", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectStopTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_QuorumLost_WithFreezePolicy_Freezes(t *testing.T) {
	cfg := ResourceRuntimeConfig{OnQuorumLossFreeze: true}
	next, effects := Transition(StateActive, EventQuorumLost, cfg)
	if next != StateActive {
		t.Fatalf("next = %v, want Active (stays frozen in place)", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectFreezeTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_QuorumRegained_WithFreezePolicy_Thaws_NoRestart(t *testing.T) {
	cfg := ResourceRuntimeConfig{OnQuorumLossFreeze: true}
	next, effects := Transition(StateActive, EventQuorumRegained, cfg)
	if next != StateActive {
		t.Fatalf("next = %v, want Active (no restart on quorum return)", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectThawTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_QuorumRegained_WithoutFreezePolicy_NoEffect(t *testing.T) {
	next, effects := Transition(StateActive, EventQuorumRegained, ResourceRuntimeConfig{})
	if next != StateActive || effects != nil {
		t.Fatalf("got (%v, %+v), want (Active, nil)", next, effects)
	}
}

func TestActive_MayPromoteFalse_Stops(t *testing.T) {
	next, effects := Transition(StateActive, EventMayPromoteFalse, ResourceRuntimeConfig{})
	if next != StateStopping {
		t.Fatalf("next = %v, want Stopping", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectStopTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_MorePreferredPeerUpToDate_PolicyAlways_Stops(t *testing.T) {
	cfg := ResourceRuntimeConfig{PreferredNodesPolicyAlways: true}
	next, effects := Transition(StateActive, EventMorePreferredPeerUpToDate, cfg)
	if next != StateStopping {
		t.Fatalf("next = %v, want Stopping", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectStopTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_MorePreferredPeerUpToDate_PolicyDefault_NoEffect(t *testing.T) {
	next, effects := Transition(StateActive, EventMorePreferredPeerUpToDate, ResourceRuntimeConfig{})
	if next != StateActive || effects != nil {
		t.Fatalf("got (%v, %+v), want (Active, nil)", next, effects)
	}
}

func TestActive_DemotionFailed_Escalates(t *testing.T) {
	cfg := ResourceRuntimeConfig{OnDRBDDemoteFailure: "poweroff"}
	next, effects := Transition(StateActive, EventDemotionFailed, cfg)
	if next != StateActive {
		t.Fatalf("next = %v, want Active (unchanged)", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectEscalate || effects[0].EscalationAction != "poweroff" {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_PluginExit_StopServicesOnExit_Stops(t *testing.T) {
	cfg := ResourceRuntimeConfig{StopServicesOnExit: true}
	next, effects := Transition(StateActive, EventPluginExit, cfg)
	if next != StateStopping {
		t.Fatalf("next = %v, want Stopping", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectStopTarget {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestActive_PluginExit_WithoutStopServicesOnExit_NoEffect(t *testing.T) {
	next, effects := Transition(StateActive, EventPluginExit, ResourceRuntimeConfig{})
	if next != StateActive || effects != nil {
		t.Fatalf("got (%v, %+v), want (Active, nil)", next, effects)
	}
}

func TestStopping_StopCompleted_ReturnsToIdle(t *testing.T) {
	next, effects := Transition(StateStopping, EventStopCompleted, ResourceRuntimeConfig{})
	if next != StateIdle || effects != nil {
		t.Fatalf("got (%v, %+v), want (Idle, nil)", next, effects)
	}
}

func TestStopping_DemotionFailed_EscalatesWithoutChangingState(t *testing.T) {
	cfg := ResourceRuntimeConfig{OnDRBDDemoteFailure: "poweroff"}
	next, effects := Transition(StateStopping, EventDemotionFailed, cfg)
	if next != StateStopping {
		t.Fatalf("next = %v, want Stopping (unchanged)", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectEscalate || effects[0].EscalationAction != "poweroff" {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestFailed_IsTerminal(t *testing.T) {
	for ev := EventMayPromoteTrue; ev <= EventPluginExit; ev++ {
		next, effects := Transition(StateFailed, ev, ResourceRuntimeConfig{})
		if next != StateFailed || effects != nil {
			t.Fatalf("event %v: got (%v, %+v), want (Failed, nil)", ev, next, effects)
		}
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:     "Idle",
		StateSleeping: "Sleeping",
		StateStarting: "Starting",
		StateActive:   "Active",
		StateStopping: "Stopping",
		StateFailed:   "Failed",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
