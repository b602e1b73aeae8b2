package svcmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/drbd-reactor-go/reactor/internal/config"
)

// strength renders a dependencies-as/target-as value ("requires" or
// "wants") as the matching systemd directive keyword. Matching is
// case-insensitive: config.Document.withDefaults normalizes these to
// lowercase, but callers that build a PromoterResourceConfig directly
// (tests, programmatic callers) may not have gone through that path.
func strength(as string) string {
	if strings.EqualFold(as, "wants") {
		return "Wants"
	}
	return "Requires"
}

// PromotionUnit and TargetUnit name the two units the promoter
// synthesizes for resourceName around a configured start list (spec §4.4
// "a drop-in for a promotion unit templated by resource name" and "a
// target drop-in listing all ui").
func PromotionUnit(resourceName string) string { return fmt.Sprintf("drbd-promote@%s.service", resourceName) }
func TargetUnit(resourceName string) string     { return fmt.Sprintf("drbd-services@%s.target", resourceName) }

// Plan is the materialized set of overrides and the single unit to start
// to bring a resource's service-manager dependency graph up.
type Plan struct {
	// Overrides maps a unit name to the directive lines for its drop-in.
	Overrides map[string][]string
	// StartUnit is invoked after every override in Overrides is written.
	StartUnit string
}

// BuildPlan derives the override tree for one resource's start list
// (spec §4.4 "Service-manager override model", scenario 2). Calling it
// twice with identical resourceName/cfg yields byte-identical Overrides
// content (spec §8 "Override idempotence").
func BuildPlan(resourceName string, cfg config.PromoterResourceConfig) Plan {
	promotionUnit := PromotionUnit(resourceName)
	targetUnit := TargetUnit(resourceName)

	overrides := make(map[string][]string, len(cfg.Start)+2)

	overrides[promotionUnit] = promotionUnitLines(resourceName, cfg)

	depStrength := strength(cfg.DependenciesAs)
	for i, entry := range cfg.Start {
		unit, isOCF := splitOCFEntry(entry)
		lines := []string{
			fmt.Sprintf("%s=%s", depStrength, promotionUnit),
			fmt.Sprintf("After=%s", promotionUnit),
		}
		if i > 0 {
			prev, _ := splitOCFEntry(cfg.Start[i-1])
			lines = append(lines,
				fmt.Sprintf("%s=%s", depStrength, prev),
				fmt.Sprintf("After=%s", prev),
			)
		}
		if isOCF {
			lines = append(lines, "Restart=on-failure")
		}
		overrides[unit] = lines
	}

	targetStrength := strength(cfg.TargetAs)
	targetLines := make([]string, 0, len(cfg.Start))
	for _, unit := range cfg.Start {
		name, _ := splitOCFEntry(unit)
		targetLines = append(targetLines, fmt.Sprintf("%s=%s", targetStrength, name))
	}
	overrides[targetUnit] = targetLines

	return Plan{Overrides: overrides, StartUnit: targetUnit}
}

func promotionUnitLines(resourceName string, cfg config.PromoterResourceConfig) []string {
	lines := []string{"[Unit]"}
	for _, unit := range cfg.Start {
		name, _ := splitOCFEntry(unit)
		lines = append(lines, fmt.Sprintf("ConditionPathExists=/dev/drbd/by-res/%s", resourceName))
		_ = name
		break // one condition on the resource's own device suffices; per-unit backing paths are validated by the OCF/shell start commands themselves.
	}
	lines = append(lines, "[Service]", fmt.Sprintf("ExecStart=/usr/sbin/drbdadm primary %s", resourceName))
	return lines
}

// isOCFEntry reports whether a start-list entry is an OCF resource
// descriptor (spec §4.4 "ocf:<vendor>:<agent> <instance-id> k=v …").
func isOCFEntry(entry string) bool {
	return strings.HasPrefix(entry, "ocf:")
}

// splitOCFEntry returns the unit name to reference in dependency lines:
// for a plain systemd unit, the entry itself; for an OCF entry, the
// synthesized wrapper unit name.
func splitOCFEntry(entry string) (name string, isOCF bool) {
	if !isOCFEntry(entry) {
		return entry, false
	}
	fields := strings.Fields(entry)
	if len(fields) < 2 {
		return entry, true
	}
	vendor := strings.TrimPrefix(fields[0], "ocf:")
	instanceID := fields[1]
	return WrapperUnit(vendor, instanceID), true
}

// Apply writes every override in p and starts p.StartUnit.
func (m *Manager) Apply(ctx context.Context, p Plan) error {
	for unit, lines := range p.Overrides {
		if err := m.WriteOverride(unit, lines); err != nil {
			return err
		}
	}
	if err := m.DaemonReload(ctx); err != nil {
		return err
	}
	return m.StartUnit(ctx, p.StartUnit)
}

// Teardown stops p.StartUnit and removes every override Apply wrote.
func (m *Manager) Teardown(ctx context.Context, p Plan) error {
	stopErr := m.StopUnit(ctx, p.StartUnit)
	for unit := range p.Overrides {
		_ = m.RemoveOverride(unit)
	}
	return stopErr
}
