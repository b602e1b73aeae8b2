package promoter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/model"
	"github.com/drbd-reactor-go/reactor/internal/observability"
	"github.com/drbd-reactor-go/reactor/internal/pluginhost"
	"github.com/drbd-reactor-go/reactor/internal/rerr"
	"github.com/drbd-reactor-go/reactor/internal/svcmgr"
)

// target abstracts the two ways a resource's start/stop list can be
// driven (spec §4.4 "Shell runner alternative"): the default
// service-manager-backed plan, or a literal shell command sequence.
type target interface {
	start(ctx context.Context) error
	stop(ctx context.Context) error
	// forceStop retries a failed plain demotion with a forced variant
	// (spec §6 "secondary-force"), invoked only after stop has failed.
	forceStop(ctx context.Context) error
	freeze(ctx context.Context) error
	thaw(ctx context.Context) error
}

type svcmgrTarget struct {
	mgr          *svcmgr.Manager
	plan         svcmgr.Plan
	resourceName string
}

func (t svcmgrTarget) start(ctx context.Context) error { return t.mgr.Apply(ctx, t.plan) }
func (t svcmgrTarget) stop(ctx context.Context) error  { return t.mgr.Teardown(ctx, t.plan) }

// forceStop demotes the resource directly with drbdadm's --force flag,
// bypassing the service-manager unit that a plain Teardown failed to
// stop cleanly.
func (t svcmgrTarget) forceStop(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "drbdadm", "secondary", "--force", t.resourceName)
	if out, err := cmd.CombinedOutput(); err != nil {
		return rerr.Wrap(rerr.DemotionFailed, fmt.Sprintf("drbdadm secondary --force %s: %s", t.resourceName, out), err)
	}
	return nil
}

func (t svcmgrTarget) freeze(ctx context.Context) error {
	for unit := range t.plan.Overrides {
		if err := t.mgr.FreezeUnit(ctx, unit); err != nil {
			return err
		}
	}
	return nil
}
func (t svcmgrTarget) thaw(ctx context.Context) error {
	for unit := range t.plan.Overrides {
		if err := t.mgr.ThawUnit(ctx, unit); err != nil {
			return err
		}
	}
	return nil
}

type shellTarget struct{ runner svcmgr.ShellRunner }

func (t shellTarget) start(ctx context.Context) error { return t.runner.Start(ctx) }
func (t shellTarget) stop(ctx context.Context) error  { return t.runner.Stop(ctx) }

// forceStop has no separate forced variant for a literal shell command
// list; retrying the same stop list is the only option available.
func (t shellTarget) forceStop(ctx context.Context) error { return t.runner.Stop(ctx) }
func (t shellTarget) freeze(ctx context.Context) error    { return nil }
func (t shellTarget) thaw(ctx context.Context) error      { return nil }

// Resource is one promoter resource: a pluginhost.Instance driving
// Transition() off the updates stream for its configured resource name
// and dispatching the returned Effects against a target.
type Resource struct {
	promoterID   string
	resourceName string
	cfg          config.PromoterResourceConfig
	hostname     string
	target       target
	log          *zap.Logger
	metrics      *observability.Metrics

	fingerprint string

	state        State
	sleepTimer   *time.Timer
	mayPromote   bool
	hasQuorum    bool
	quorumKnown  bool
	diskStates   map[uint32]model.DiskState

	// peerDiskStates tracks each peer node's last observed disk state,
	// keyed by peer node ID, so onUpdate can detect the edge where a
	// preferred peer becomes UpToDate (spec §4.4 preferred-nodes-policy).
	peerDiskStates map[uint32]model.DiskState
}

// NewResource returns a Resource wired to materialize its target through
// mgr, or through a literal shell runner if cfg.Runner == "shell".
func NewResource(promoterID, resourceName string, cfg config.PromoterResourceConfig, mgr *svcmgr.Manager, log *zap.Logger, metrics *observability.Metrics) *Resource {
	hostname, _ := os.Hostname()

	var t target
	if cfg.Runner == "shell" {
		t = shellTarget{runner: svcmgr.ShellRunner{StartCommands: cfg.Start, StopCommands: cfg.Stop}}
	} else {
		t = svcmgrTarget{mgr: mgr, plan: svcmgr.BuildPlan(resourceName, cfg), resourceName: resourceName}
	}

	return &Resource{
		promoterID:     promoterID,
		resourceName:   resourceName,
		cfg:            cfg,
		hostname:       hostname,
		target:         t,
		log:            log,
		metrics:        metrics,
		fingerprint:    fingerprintOf(resourceName, cfg),
		state:          StateIdle,
		diskStates:     make(map[uint32]model.DiskState),
		peerDiskStates: make(map[uint32]model.DiskState),
	}
}

func fingerprintOf(resourceName string, cfg config.PromoterResourceConfig) string {
	return fmt.Sprintf("%s|%v|%v|%s|%s|%s|%v|%v|%v|%s|%v|%s|%s|%v",
		resourceName, cfg.Start, cfg.Stop, cfg.Runner, cfg.DependenciesAs, cfg.TargetAs,
		cfg.OnDRBDDemoteFailure, cfg.StopServicesOnExit, cfg.SecondaryForceEnabled(),
		cfg.PreferredNodesPolicy, cfg.PreferredNodes,
		cfg.OnStopFailure, cfg.OnQuorumLoss, cfg.SleepBeforePromoteFactor)
}

func (r *Resource) ID() string          { return r.promoterID + "/" + r.resourceName }
func (r *Resource) Kind() pluginhost.Kind { return pluginhost.KindPromoter }
func (r *Resource) Fingerprint() string { return r.fingerprint }

// Run is the resource's event loop body (spec §4.4, §9 "side effects ...
// are returned as a list of effects executed by the plugin's event loop,
// not invoked from within transitions").
func (r *Resource) Run(ctx context.Context, updates <-chan diff.PluginUpdate) error {
	defer r.stopSleepTimer()

	for {
		var timerC <-chan time.Time
		if r.sleepTimer != nil {
			timerC = r.sleepTimer.C
		}

		select {
		case <-ctx.Done():
			if r.cfg.StopServicesOnExit {
				// ctx is already canceled here; the stop runs under its own
				// deadline so its commands can still start.
				stopCtx, cancel := context.WithTimeout(context.Background(), pluginhost.ShutdownGrace)
				r.dispatch(stopCtx, EventPluginExit)
				cancel()
			}
			return nil

		case <-timerC:
			r.sleepTimer = nil
			r.dispatch(ctx, EventSleepTimerFired)

		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.ResourceName != r.resourceName {
				continue
			}
			r.onUpdate(ctx, upd)
		}
	}
}

func (r *Resource) onUpdate(ctx context.Context, upd diff.PluginUpdate) {
	switch upd.Dimension {
	case diff.DimensionResourceRole:
		sub, ok := upd.New.(diff.ResourceRoleSubset)
		if !ok {
			return
		}
		if sub.MayPromote != r.mayPromote {
			r.mayPromote = sub.MayPromote
			if r.mayPromote {
				r.dispatch(ctx, EventMayPromoteTrue)
			} else {
				r.dispatch(ctx, EventMayPromoteFalse)
			}
		}

	case diff.DimensionDevice:
		if upd.Volume != nil {
			if sub, ok := upd.New.(diff.DeviceSubset); ok {
				if upd.EventType == diff.EventDestroy {
					delete(r.diskStates, *upd.Volume)
				} else {
					r.diskStates[*upd.Volume] = sub.Disk
				}
			}
		}
		quorum := deviceSnapshotHasQuorum(upd.Snapshot)
		if !r.quorumKnown || quorum != r.hasQuorum {
			wasKnown := r.quorumKnown
			r.hasQuorum = quorum
			r.quorumKnown = true
			if wasKnown {
				if quorum {
					r.dispatch(ctx, EventQuorumRegained)
				} else {
					r.dispatch(ctx, EventQuorumLost)
				}
			}
		}

	case diff.DimensionPeerDevice:
		if upd.PeerNodeID == nil {
			return
		}
		peerID := *upd.PeerNodeID
		if upd.EventType == diff.EventDestroy {
			delete(r.peerDiskStates, peerID)
			return
		}
		sub, ok := upd.New.(diff.PeerDeviceSubset)
		if !ok {
			return
		}
		prev, known := r.peerDiskStates[peerID]
		r.peerDiskStates[peerID] = sub.PeerDisk
		becameUpToDate := sub.PeerDisk == model.DiskUpToDate && (!known || prev != model.DiskUpToDate)
		if becameUpToDate && r.morePreferredPeerUpToDate(peerID, upd.Snapshot) {
			r.dispatch(ctx, EventMorePreferredPeerUpToDate)
		}
	}
}

// morePreferredPeerUpToDate reports whether peerID names a connection
// whose node sits ahead of this host in cfg.PreferredNodes (spec §4.4
// "an already-Active node observing a more-preferred peer becoming
// UpToDate must stop its target"). A peer not present in the snapshot's
// connections, or one with no recorded node name, never relinquishes.
func (r *Resource) morePreferredPeerUpToDate(peerID uint32, snap model.Snapshot) bool {
	conn, ok := snap.Resource.Connections[peerID]
	if !ok || conn.Name == "" {
		return false
	}
	return NodePenalty(r.cfg.PreferredNodes, conn.Name) < NodePenalty(r.cfg.PreferredNodes, r.hostname)
}

// deviceSnapshotHasQuorum reports whether every local device in the
// snapshot currently reports quorum; a resource with no devices yet has
// no quorum to speak of.
func deviceSnapshotHasQuorum(snap model.Snapshot) bool {
	if len(snap.Resource.Devices) == 0 {
		return false
	}
	for _, d := range snap.Resource.Devices {
		if !d.Quorum {
			return false
		}
	}
	return true
}

func (r *Resource) runtimeConfig() ResourceRuntimeConfig {
	devices := make([]model.DiskState, 0, len(r.diskStates))
	for _, d := range r.diskStates {
		devices = append(devices, d)
	}
	sleep := SleepBeforePromote(devices, r.cfg.SleepBeforePromoteFactor, r.cfg.PreferredNodes, r.hostname)
	return ResourceRuntimeConfig{
		SleepBeforePromote:         sleep,
		OnDRBDDemoteFailure:        r.cfg.OnDRBDDemoteFailure,
		SecondaryForce:             r.cfg.SecondaryForceEnabled(),
		StopServicesOnExit:         r.cfg.StopServicesOnExit,
		OnQuorumLossFreeze:         r.cfg.OnQuorumLoss == "freeze",
		PreferredNodesPolicyAlways: r.cfg.PreferredNodesPolicy == "always",
	}
}

func (r *Resource) dispatch(ctx context.Context, ev Event) {
	next, effects := Transition(r.state, ev, r.runtimeConfig())
	if next != r.state {
		r.log.Info("promoter: state transition",
			zap.String("resource", r.resourceName), zap.String("from", r.state.String()), zap.String("to", next.String()))
		if r.metrics != nil {
			r.metrics.PromoterState.WithLabelValues(r.resourceName, r.state.String()).Set(0)
			r.metrics.PromoterState.WithLabelValues(r.resourceName, next.String()).Set(1)
		}
	}
	r.state = next
	for _, eff := range effects {
		r.execute(ctx, eff)
	}
}

func (r *Resource) execute(ctx context.Context, eff Effect) {
	switch eff.Kind {
	case EffectArmSleepTimer:
		r.stopSleepTimer()
		r.sleepTimer = time.NewTimer(eff.SleepDuration)

	case EffectStartTarget:
		if err := r.target.start(ctx); err != nil {
			r.log.Error("promoter: start failed", zap.String("resource", r.resourceName), zap.Error(err))
			r.dispatch(ctx, EventStartFailed)
			return
		}
		if r.metrics != nil {
			r.metrics.PromotionsTotal.WithLabelValues(r.resourceName).Inc()
		}
		r.dispatch(ctx, EventStartSucceeded)

	case EffectStopTarget:
		err := r.target.stop(ctx)
		if err != nil {
			r.log.Error("promoter: stop failed", zap.String("resource", r.resourceName), zap.Error(err))
			if r.runtimeConfig().SecondaryForce {
				r.log.Warn("promoter: retrying demotion with forced variant",
					zap.String("resource", r.resourceName))
				err = r.target.forceStop(ctx)
				if err != nil {
					r.log.Error("promoter: forced stop failed", zap.String("resource", r.resourceName), zap.Error(err))
				}
			}
		}
		if err != nil {
			r.dispatch(ctx, EventDemotionFailed)
			return
		}
		r.dispatch(ctx, EventStopCompleted)

	case EffectFreezeTarget:
		if err := r.target.freeze(ctx); err != nil {
			r.log.Error("promoter: freeze failed", zap.String("resource", r.resourceName), zap.Error(err))
		}

	case EffectThawTarget:
		if err := r.target.thaw(ctx); err != nil {
			r.log.Error("promoter: thaw failed", zap.String("resource", r.resourceName), zap.Error(err))
		}

	case EffectEscalate:
		if r.metrics != nil {
			r.metrics.DemotionFailuresTotal.WithLabelValues(r.resourceName).Inc()
		}
		runEscalation(ctx, r.log, r.resourceName, eff.EscalationAction)
	}
}

func (r *Resource) stopSleepTimer() {
	if r.sleepTimer != nil {
		r.sleepTimer.Stop()
		r.sleepTimer = nil
	}
}
