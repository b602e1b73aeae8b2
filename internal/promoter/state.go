// Package promoter implements the promoter plugin (spec §4.4): a
// single-resource high-availability state machine that races peers for
// exclusive ownership of a resource and drives a service-manager-backed
// dependency graph accordingly.
//
// The state machine itself is a tagged variant with pure transition
// functions; side effects (service-manager calls, timer arms,
// escalation) are returned as a list of Effect values for the plugin's
// event loop to execute, never invoked from within a transition (spec
// §9 "State-machine representation"). This mirrors the teacher's
// escalation.ProcessState pattern: state plus explicit, unit-testable
// transitions. Unlike that pattern, each Event here already encodes the
// guard the event loop evaluated (e.g. EventQuorumLost is only raised
// once, at the edge), so Transition never needs to re-derive "did this
// already happen" from raw field values.
package promoter

import "time"

// State is one of the six promoter states (spec §4.4).
type State uint8

const (
	StateIdle State = iota
	StateSleeping
	StateStarting
	StateActive
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSleeping:
		return "Sleeping"
	case StateStarting:
		return "Starting"
	case StateActive:
		return "Active"
	case StateStopping:
		return "Stopping"
	case StateFailed:
		return "Failed"
	default:
		return "Idle"
	}
}

// Event is one trigger driving a transition (spec §4.4 "Transitions").
type Event uint8

const (
	EventMayPromoteTrue Event = iota
	EventMayPromoteFalse
	EventSleepTimerFired
	EventStartSucceeded
	EventStartFailed
	EventPromotionLost
	EventQuorumLost
	EventQuorumRegained
	EventMorePreferredPeerUpToDate
	EventDemotionFailed
	EventStopCompleted
	EventPluginExit
)

// EffectKind tags the variant of Effect.
type EffectKind uint8

const (
	EffectArmSleepTimer EffectKind = iota
	EffectStartTarget
	EffectStopTarget
	EffectFreezeTarget
	EffectThawTarget
	EffectEscalate
)

// Effect is one side effect a transition requests of the event loop.
type Effect struct {
	Kind EffectKind

	// SleepDuration is set for EffectArmSleepTimer.
	SleepDuration time.Duration

	// EscalationAction is set for EffectEscalate (spec §4.4
	// on-drbd-demote-failure values).
	EscalationAction string
}

// ResourceRuntimeConfig is the resolved, defaulted configuration driving
// one resource's transitions (derived from config.PromoterResourceConfig
// plus this node's identity and its computed sleep-before-promote).
type ResourceRuntimeConfig struct {
	SleepBeforePromote         time.Duration
	OnDRBDDemoteFailure        string
	SecondaryForce             bool
	StopServicesOnExit         bool
	OnQuorumLossFreeze         bool
	PreferredNodesPolicyAlways bool
}

// Transition computes the next state and the effects to execute for one
// (state, event) pair, per spec §4.4's enumerated transitions.
func Transition(s State, ev Event, cfg ResourceRuntimeConfig) (State, []Effect) {
	switch s {
	case StateIdle:
		if ev == EventMayPromoteTrue {
			return StateSleeping, []Effect{{Kind: EffectArmSleepTimer, SleepDuration: cfg.SleepBeforePromote}}
		}

	case StateSleeping:
		switch ev {
		case EventSleepTimerFired:
			return StateStarting, []Effect{{Kind: EffectStartTarget}}
		case EventMayPromoteFalse:
			return StateIdle, nil
		}

	case StateStarting:
		switch ev {
		case EventStartSucceeded:
			return StateActive, nil
		case EventStartFailed, EventPromotionLost:
			return StateIdle, []Effect{{Kind: EffectStopTarget}}
		case EventDemotionFailed:
			return s, []Effect{escalationEffect(cfg)}
		}

	case StateActive:
		switch ev {
		case EventQuorumLost:
			if cfg.OnQuorumLossFreeze {
				return s, []Effect{{Kind: EffectFreezeTarget}}
			}
			return StateStopping, []Effect{{Kind: EffectStopTarget}}
		case EventMayPromoteFalse:
			return StateStopping, []Effect{{Kind: EffectStopTarget}}
		case EventQuorumRegained:
			if cfg.OnQuorumLossFreeze {
				return s, []Effect{{Kind: EffectThawTarget}}
			}
		case EventMorePreferredPeerUpToDate:
			if cfg.PreferredNodesPolicyAlways {
				return StateStopping, []Effect{{Kind: EffectStopTarget}}
			}
		case EventDemotionFailed:
			return s, []Effect{escalationEffect(cfg)}
		case EventPluginExit:
			if cfg.StopServicesOnExit {
				return StateStopping, []Effect{{Kind: EffectStopTarget}}
			}
		}

	case StateStopping:
		switch ev {
		case EventStopCompleted:
			return StateIdle, nil
		case EventDemotionFailed:
			return s, []Effect{escalationEffect(cfg)}
		}

	case StateFailed:
		// terminal until an operator intervenes externally; no event
		// drives a transition out of Failed.
	}

	return s, nil
}

func escalationEffect(cfg ResourceRuntimeConfig) Effect {
	return Effect{Kind: EffectEscalate, EscalationAction: cfg.OnDRBDDemoteFailure}
}
