package pluginhost

import (
	"context"

	"github.com/drbd-reactor-go/reactor/internal/diff"
)

// Kind tags a plugin instance by the variant it implements (spec §4.3
// "plugin instances grouped by type").
type Kind uint8

const (
	KindPromoter Kind = iota
	KindUserModeHelper
	KindWebExposition
	KindSubagent
	KindDebugger
)

func (k Kind) String() string {
	switch k {
	case KindPromoter:
		return "promoter"
	case KindUserModeHelper:
		return "user-mode-helper"
	case KindWebExposition:
		return "web-exposition"
	case KindSubagent:
		return "subagent"
	case KindDebugger:
		return "debugger"
	default:
		return "unknown"
	}
}

// Instance is one configured plugin the host starts/stops/restarts.
// Concrete variants (promoter.Resource, umh.Filter, webexposition.Server,
// subagent.Agent, a debugger) each implement this.
type Instance interface {
	ID() string
	Kind() Kind

	// Fingerprint is an opaque digest of the instance's configuration.
	// Two instances with the same ID but different Fingerprint cause the
	// host to restart the plugin on reload (spec §4.3 "restarts plugins
	// whose configuration changed").
	Fingerprint() string

	// Run is the plugin worker's body. It must return promptly once ctx
	// is canceled (spec §4.3 notification contract: "it must respond to
	// ExitRequest promptly"); updates is closed when the host unregisters
	// this plugin from the broadcaster, which its per-plugin stop does.
	Run(ctx context.Context, updates <-chan diff.PluginUpdate) error
}
