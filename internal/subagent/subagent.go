package subagent

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/pluginhost"
)

// WalkWindow is the default "walk continuity" duration (spec §4.6
// "default 15s").
const WalkWindow = 15 * time.Second

// Agent is one [[subagent]] instance: it maintains a Cache off the
// PluginUpdate stream and maintains a connection to the local
// agent-extensibility manager at cfg.Address.
type Agent struct {
	id         string
	address    string
	peerStates bool
	cache      *Cache
	log        *zap.Logger

	fingerprint string
}

// New returns an Agent with its Cache sized from cfg (spec §6
// "cache-max", "peer-states"; walk-window is not a configuration key in
// §6's documented keys, so it is fixed at WalkWindow per the default in
// §4.6).
func New(cfg config.SubagentConfig, log *zap.Logger) *Agent {
	return &Agent{
		id:          cfg.ID,
		address:     cfg.Address,
		peerStates:  cfg.PeerStates,
		cache:       NewCache(time.Duration(cfg.CacheMax)*time.Second, WalkWindow, nil),
		log:         log,
		fingerprint: fmt.Sprintf("%s|%d|%v", cfg.Address, cfg.CacheMax, cfg.PeerStates),
	}
}

func (a *Agent) ID() string            { return a.id }
func (a *Agent) Kind() pluginhost.Kind { return pluginhost.KindSubagent }
func (a *Agent) Fingerprint() string   { return a.fingerprint }

// Cache exposes the underlying Cache for the master-facing protocol
// handler to query.
func (a *Agent) Cache() *Cache { return a.cache }

// Run feeds the Cache from updates and maintains a reconnecting
// connection to the local agent-extensibility manager, respawning on
// disconnect with exponential backoff (grounded on the ingester's
// respawn discipline for the event-source child process).
func (a *Agent) Run(ctx context.Context, updates <-chan diff.PluginUpdate) error {
	go a.feedCache(ctx, updates)

	if a.address == "" {
		<-ctx.Done()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := a.connectOnce(ctx); err != nil {
			a.log.Warn("subagent: connection to manager failed, retrying", zap.Error(err))
		}

		wait := bo.NextBackOff()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (a *Agent) feedCache(ctx context.Context, updates <-chan diff.PluginUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.EventType == diff.EventDestroy && upd.Dimension == diff.DimensionResourceRole {
				a.cache.Remove(upd.ResourceName)
				continue
			}
			a.cache.Update(upd.Snapshot)
		}
	}
}

// connectOnce opens the AgentX-style session to the local manager and
// blocks serving requests until the connection drops or ctx is canceled.
// The wire protocol itself is outside this daemon's concern (spec §1
// "the service manager ... only its ... interface is consumed" applies
// by analogy here: only the cache discipline is in scope); this dials
// the configured address and idles, ready for a protocol handler to be
// layered on the connection.
func (a *Agent) connectOnce(ctx context.Context) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", a.address)
	if err != nil {
		return err
	}
	defer conn.Close()

	<-ctx.Done()
	return nil
}
