// Package umh implements the user-mode-helper filter plugin (spec
// §4.5): a stateless set of rules, each scoped to one change dimension,
// that fire an external command through sh -c when a PluginUpdate
// matches.
package umh

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/pluginhost"
)

// scopeFor maps a config rule's scope string to the Dimension it filters.
func scopeFor(scope string) (diff.Dimension, bool) {
	switch scope {
	case "resource":
		return diff.DimensionResourceRole, true
	case "device":
		return diff.DimensionDevice, true
	case "peer-device":
		return diff.DimensionPeerDevice, true
	case "connection":
		return diff.DimensionConnection, true
	default:
		return 0, false
	}
}

// Filter is one [[user-mode-helper]] instance: a stateless list of rules
// matched independently against every incoming PluginUpdate.
type Filter struct {
	id    string
	rules []compiledRule
	log   *zap.Logger

	fingerprint string
}

type compiledRule struct {
	dimension diff.Dimension
	cfg       config.UMHRuleConfig
}

// New compiles cfg's rules, dropping any whose scope isn't recognized
// (config.Validate already rejects those at load time, so this is
// defensive only).
func New(cfg config.UserModeHelperConfig, log *zap.Logger) *Filter {
	rules := make([]compiledRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		dim, ok := scopeFor(r.Scope)
		if !ok {
			continue
		}
		rules = append(rules, compiledRule{dimension: dim, cfg: r})
	}
	return &Filter{id: cfg.ID, rules: rules, log: log, fingerprint: fmt.Sprintf("%+v", cfg)}
}

func (f *Filter) ID() string            { return f.id }
func (f *Filter) Kind() pluginhost.Kind { return pluginhost.KindUserModeHelper }
func (f *Filter) Fingerprint() string   { return f.fingerprint }

// Run matches every update against every rule of the matching scope and
// fires matching rules concurrently (spec §4.5 "Every matching rule
// fires its command ... concurrently with other matches").
func (f *Filter) Run(ctx context.Context, updates <-chan diff.PluginUpdate) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			for _, rule := range f.rules {
				if rule.dimension != upd.Dimension {
					continue
				}
				if matches(rule.cfg, upd) {
					go f.fire(ctx, rule.cfg, upd)
				}
			}
		}
	}
}

func (f *Filter) fire(ctx context.Context, rule config.UMHRuleConfig, upd diff.PluginUpdate) {
	env := buildEnv(rule, upd)
	cmd := exec.CommandContext(ctx, "sh", "-c", rule.Command)
	cmd.Env = env
	if out, err := cmd.CombinedOutput(); err != nil {
		f.log.Warn("umh: rule command failed",
			zap.String("rule", rule.Name), zap.String("resource", upd.ResourceName), zap.Error(err), zap.ByteString("output", out))
	}
}
