// Package debugger implements the trivial debug plugin: it logs every
// PluginUpdate it receives and otherwise does nothing (spec §4.3's
// plugin-type list includes "debugger" alongside promoter,
// user-mode-helper, web-exposition, and subagent).
package debugger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/pluginhost"
)

// Plugin logs every update it is handed. It carries no state across
// updates and never fails, so its Fingerprint is constant for a given ID.
type Plugin struct {
	id  string
	log *zap.Logger
}

// New returns a Plugin for the given configuration.
func New(cfg config.DebuggerConfig, log *zap.Logger) *Plugin {
	return &Plugin{id: cfg.ID, log: log}
}

func (p *Plugin) ID() string            { return p.id }
func (p *Plugin) Kind() pluginhost.Kind { return pluginhost.KindDebugger }
func (p *Plugin) Fingerprint() string   { return fmt.Sprintf("debugger|%s", p.id) }

// Run logs each update at debug level until ctx is canceled or the
// update channel is closed.
func (p *Plugin) Run(ctx context.Context, updates <-chan diff.PluginUpdate) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			p.log.Debug("debugger: update received",
				zap.String("resource", upd.ResourceName),
				zap.String("dimension", upd.Dimension.String()),
				zap.String("event", upd.EventType.String()),
			)
		}
	}
}
