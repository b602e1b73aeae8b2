package umh

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
)

// constraint is one field constraint under old.* or new.* (spec §4.5
// "a constraint may be expressed as a bare value (meaning Equals) or as
// {operator, value} with operator ∈ {Equals, NotEquals}").
type constraint struct {
	operator string
	value    any
}

func parseConstraint(raw any) constraint {
	if m, ok := raw.(map[string]any); ok {
		return constraint{operator: fmt.Sprint(m["operator"]), value: m["value"]}
	}
	return constraint{operator: "Equals", value: raw}
}

func (c constraint) satisfiedBy(actual any) bool {
	eq := fmt.Sprint(actual) == fmt.Sprint(c.value)
	if c.operator == "NotEquals" {
		return !eq
	}
	return eq
}

// matches reports whether rule's old.*/new.* field constraints all hold
// against upd (spec §4.5 "Matching").
func matches(rule config.UMHRuleConfig, upd diff.PluginUpdate) bool {
	if rule.ResourceName != "" && rule.ResourceName != upd.ResourceName {
		return false
	}
	if !constraintsSatisfied(rule.Old, upd.Old) {
		return false
	}
	if !constraintsSatisfied(rule.New, upd.New) {
		return false
	}
	return true
}

// constraintsSatisfied checks every key in raw against the matching
// exported field of subset (a ResourceRoleSubset, DeviceSubset,
// PeerDeviceSubset, or ConnectionSubset value), matched case-insensitively
// against the field name with underscores folded out.
func constraintsSatisfied(raw map[string]any, subset any) bool {
	if len(raw) == 0 {
		return true
	}
	v := reflect.ValueOf(subset)
	if v.Kind() != reflect.Struct {
		return false
	}
	for key, rawVal := range raw {
		field := findField(v, key)
		if !field.IsValid() {
			return false
		}
		if !parseConstraint(rawVal).satisfiedBy(field.Interface()) {
			return false
		}
	}
	return true
}

func findField(v reflect.Value, key string) reflect.Value {
	target := normalizeFieldName(key)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if normalizeFieldName(t.Field(i).Name) == target {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

func normalizeFieldName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}
