package umh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/model"
)

func TestScenario3_FiresOnceOnRoleTransition_ZeroOnUnrelatedChange(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "fired")
	cfg := config.UserModeHelperConfig{
		ID: "umh-0",
		Rules: []config.UMHRuleConfig{{
			Scope:        "resource",
			ResourceName: "foo",
			Old:          map[string]any{"role": "Secondary"},
			New:          map[string]any{"role": "Primary"},
			Command:      "echo hit >> " + marker,
		}},
	}
	f := New(cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan diff.PluginUpdate, 2)

	roleTransition := diff.PluginUpdate{
		Dimension:    diff.DimensionResourceRole,
		EventType:    diff.EventChange,
		ResourceName: "foo",
		Old:          diff.ResourceRoleSubset{Role: model.RoleSecondary},
		New:          diff.ResourceRoleSubset{Role: model.RolePrimary},
	}
	unrelated := diff.PluginUpdate{
		Dimension:    diff.DimensionResourceRole,
		EventType:    diff.EventChange,
		ResourceName: "foo",
		Old:          diff.ResourceRoleSubset{Role: model.RolePrimary, PromotionScore: 0},
		New:          diff.ResourceRoleSubset{Role: model.RolePrimary, PromotionScore: 5},
	}
	updates <- roleTransition
	updates <- unrelated

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, updates) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	b, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("expected marker file from one rule firing, got error: %v", err)
	}
	if got := countLines(b); got != 1 {
		t.Fatalf("rule fired %d times, want exactly 1", got)
	}
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

func TestMatches_BareValueMeansEquals(t *testing.T) {
	rule := config.UMHRuleConfig{Old: map[string]any{"role": "Secondary"}}
	upd := diff.PluginUpdate{Old: diff.ResourceRoleSubset{Role: model.RoleSecondary}}
	if !matches(rule, upd) {
		t.Fatal("expected match")
	}
}

func TestMatches_NotEqualsOperator(t *testing.T) {
	rule := config.UMHRuleConfig{
		New: map[string]any{"role": map[string]any{"operator": "NotEquals", "value": "Primary"}},
	}
	matching := diff.PluginUpdate{New: diff.ResourceRoleSubset{Role: model.RoleSecondary}}
	nonMatching := diff.PluginUpdate{New: diff.ResourceRoleSubset{Role: model.RolePrimary}}
	if !matches(rule, matching) {
		t.Fatal("expected match for non-Primary role")
	}
	if matches(rule, nonMatching) {
		t.Fatal("expected no match for Primary role")
	}
}

func TestMatches_ResourceNameFilter(t *testing.T) {
	rule := config.UMHRuleConfig{ResourceName: "foo"}
	matching := diff.PluginUpdate{ResourceName: "foo"}
	nonMatching := diff.PluginUpdate{ResourceName: "bar"}
	if !matches(rule, matching) || matches(rule, nonMatching) {
		t.Fatal("resource-name filter did not scope correctly")
	}
}

func TestBuildEnv_IncludesBaseAndVolumeKeys(t *testing.T) {
	vol := uint32(3)
	upd := diff.PluginUpdate{
		ResourceName: "foo",
		Dimension:    diff.DimensionDevice,
		Volume:       &vol,
		New:          diff.DeviceSubset{Backing: "/dev/sdb1"},
		Old:          diff.DeviceSubset{},
		Snapshot: model.Snapshot{Resource: model.Resource{
			Devices: map[uint32]*model.Device{3: {Volume: 3, Minor: 7}},
		}},
	}
	env := buildEnv(config.UMHRuleConfig{}, upd)

	want := map[string]bool{
		"HOME=/":                       false,
		"DRBD_RESOURCE=foo":            false,
		"DRBD_VOLUME=3":                false,
		"DRBD_MINOR_3=7":               false,
		"DRBD_BACKING_DEV_3=/dev/sdb1": false,
	}
	for _, kv := range env {
		if _, ok := want[kv]; ok {
			want[kv] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Fatalf("expected env to contain %q, got %v", k, env)
		}
	}
}
