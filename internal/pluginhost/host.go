package pluginhost

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/drbd-reactor-go/reactor/internal/observability"
)

// ShutdownGrace is the bounded join timeout for a plugin's termination
// path (spec §5 "must complete within a bounded grace period
// (implementation-defined, documented >= 5 s)").
const ShutdownGrace = 5 * time.Second

type running struct {
	instance Instance
	cancel   context.CancelFunc
	done     chan struct{}
}

// Host owns the broadcaster and the set of currently running plugin
// workers, and drives start/stop/restart on load and reload (spec §4.3
// "Lifecycle").
type Host struct {
	log         *zap.Logger
	metrics     *observability.Metrics
	broadcaster *Broadcaster

	mu      sync.Mutex
	running map[string]*running
}

// NewHost returns an empty Host. metrics may be nil.
func NewHost(log *zap.Logger, metrics *observability.Metrics) *Host {
	return &Host{
		log:         log,
		metrics:     metrics,
		broadcaster: NewBroadcaster(),
		running:     make(map[string]*running),
	}
}

// Broadcaster exposes the underlying broadcaster so the ingester/diff
// pipeline can Publish updates onto it.
func (h *Host) Broadcaster() *Broadcaster { return h.broadcaster }

// Reconcile diffs desired against the running set: stops removed
// instances, starts added instances, and restarts instances whose
// Fingerprint changed (spec §4.3). A plugin that fails to start is
// logged and skipped; Reconcile never aborts partway.
func (h *Host) Reconcile(ctx context.Context, desired []Instance) {
	desiredByID := make(map[string]Instance, len(desired))
	for _, inst := range desired {
		desiredByID[inst.ID()] = inst
	}

	h.mu.Lock()
	toStop := make(map[string]*running)
	for id, r := range h.running {
		if _, keep := desiredByID[id]; !keep {
			toStop[id] = r
		}
	}
	toStart := make([]Instance, 0, len(desiredByID))
	toRestart := make([]Instance, 0)
	for id, inst := range desiredByID {
		r, isRunning := h.running[id]
		switch {
		case !isRunning:
			toStart = append(toStart, inst)
		case r.instance.Fingerprint() != inst.Fingerprint():
			toStop[id] = r
			toRestart = append(toRestart, inst)
		}
	}
	h.mu.Unlock()

	for id, r := range toStop {
		h.stopOne(id, r)
	}
	for _, inst := range toStart {
		h.startOne(ctx, inst)
	}
	for _, inst := range toRestart {
		h.startOne(ctx, inst)
		if h.metrics != nil {
			h.metrics.PluginRestartsTotal.WithLabelValues(inst.Kind().String()).Inc()
		}
	}
}

func (h *Host) startOne(ctx context.Context, inst Instance) {
	pctx, cancel := context.WithCancel(ctx)
	updates := h.broadcaster.Register(inst.ID())
	done := make(chan struct{})

	r := &running{instance: inst, cancel: cancel, done: done}
	h.mu.Lock()
	h.running[inst.ID()] = r
	h.mu.Unlock()

	go func() {
		defer close(done)
		if err := inst.Run(pctx, updates); err != nil && pctx.Err() == nil {
			h.log.Error("pluginhost: plugin exited unexpectedly",
				zap.String("id", inst.ID()), zap.String("kind", inst.Kind().String()), zap.Error(err))
			if h.metrics != nil {
				h.metrics.PluginCrashesTotal.WithLabelValues(inst.Kind().String()).Inc()
			}
		}
	}()

	if h.metrics != nil {
		h.metrics.PluginsRunning.WithLabelValues(inst.Kind().String()).Inc()
	}
	h.log.Info("pluginhost: plugin started", zap.String("id", inst.ID()), zap.String("kind", inst.Kind().String()))
}

// stopOne signals r's termination channel (via context cancellation),
// joins with ShutdownGrace, and force-drops the handle if it doesn't
// exit in time (spec §4.3 "if a plugin fails to exit, force-drops its
// handle").
func (h *Host) stopOne(id string, r *running) {
	r.cancel()
	h.broadcaster.Unregister(id)
	h.mu.Lock()
	delete(h.running, id)
	h.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(ShutdownGrace):
		h.log.Warn("pluginhost: plugin did not exit within grace period, force-dropping", zap.String("id", id))
	}

	if h.metrics != nil {
		h.metrics.PluginsRunning.WithLabelValues(r.instance.Kind().String()).Dec()
	}
}

// Shutdown stops every running plugin, joining each with ShutdownGrace
// concurrently, then closes the broadcaster entirely.
func (h *Host) Shutdown() {
	h.mu.Lock()
	snapshot := make(map[string]*running, len(h.running))
	for id, r := range h.running {
		snapshot[id] = r
	}
	h.mu.Unlock()

	var g errgroup.Group
	for id, r := range snapshot {
		id, r := id, r
		g.Go(func() error {
			h.stopOne(id, r)
			return nil
		})
	}
	_ = g.Wait()
	h.broadcaster.CloseAll()
}
