package model_test

import (
	"testing"

	"github.com/drbd-reactor-go/reactor/internal/model"
)

func boolp(b bool) *bool    { return &b }
func i64p(v int64) *int64   { return &v }
func u64p(v uint64) *uint64 { return &v }

func TestUpsertResource_DefaultsAbsentFields(t *testing.T) {
	m := model.New()
	_, after, created := m.UpsertResource("foo", model.ResourceFields{
		MayPromote: boolp(false),
	})
	if !created {
		t.Fatal("expected resource to be created")
	}
	if *after.Role != model.RoleUnknown {
		t.Errorf("expected default role Unknown, got %v", *after.Role)
	}
	if *after.Suspended != false {
		t.Errorf("expected default suspended=false")
	}
}

func TestOverlayResource_OnlySuppliedFieldsChange(t *testing.T) {
	m := model.New()
	m.UpsertResource("foo", model.ResourceFields{
		Role: func() *model.Role { r := model.RoleSecondary; return &r }(),
	})

	before, after, ok := m.OverlayResource("foo", model.ResourceFields{
		MayPromote:     boolp(true),
		PromotionScore: i64p(10000),
	})
	if !ok {
		t.Fatal("expected resource to exist")
	}
	if *before.MayPromote != false {
		t.Errorf("expected before.MayPromote=false, got %v", *before.MayPromote)
	}
	if *after.MayPromote != true {
		t.Errorf("expected after.MayPromote=true, got %v", *after.MayPromote)
	}
	if *after.Role != model.RoleSecondary {
		t.Errorf("role should be untouched by the change event, got %v", *after.Role)
	}
}

// Scenario 1 from spec §8: exists then a change to may-promote/promotion-score
// must leave suspended and role exactly as last observed.
func TestScenario1_ExistsThenChange(t *testing.T) {
	m := model.New()
	falseVal := false
	secondary := model.RoleSecondary
	m.UpsertResource("foo", model.ResourceFields{
		Role:       &secondary,
		MayPromote: &falseVal,
		Suspended:  &falseVal,
	})

	trueVal := true
	score := int64(10000)
	before, after, ok := m.OverlayResource("foo", model.ResourceFields{
		MayPromote:     &trueVal,
		PromotionScore: &score,
	})
	if !ok {
		t.Fatal("resource must exist")
	}
	if *before.MayPromote != false || *after.MayPromote != true {
		t.Errorf("expected may_promote false->true, got %v->%v", *before.MayPromote, *after.MayPromote)
	}
	if *after.PromotionScore != 10000 {
		t.Errorf("expected promotion_score=10000, got %d", *after.PromotionScore)
	}
}

func TestDestroyResource_RemovesDescendants(t *testing.T) {
	m := model.New()
	m.UpsertResource("foo", model.ResourceFields{})
	m.UpsertDevice("foo", 0, model.DeviceFields{})
	m.UpsertConnection("foo", 1, model.ConnectionFields{})
	m.UpsertPeerDevice("foo", 1, 0, model.PeerDeviceFields{})

	if _, ok := m.DestroyResource("foo"); !ok {
		t.Fatal("expected destroy to succeed")
	}
	if _, ok := m.Snapshot("foo"); ok {
		t.Fatal("expected resource to be gone after destroy")
	}
	if _, _, ok := m.OverlayDevice("foo", 0, model.DeviceFields{}); ok {
		t.Fatal("descendant device must not survive resource destroy")
	}
}

func TestCounterReset_ReBaselinesWithoutRefusal(t *testing.T) {
	m := model.New()
	m.UpsertResource("foo", model.ResourceFields{})
	m.UpsertDevice("foo", 0, model.DeviceFields{ReadBytes: u64p(1000)})

	_, after, ok := m.OverlayDevice("foo", 0, model.DeviceFields{ReadBytes: u64p(10)})
	if !ok {
		t.Fatal("expected device to exist")
	}
	if *after.ReadBytes != 10 {
		t.Errorf("expected stored counter to re-baseline to 10, got %d", *after.ReadBytes)
	}
	if m.Resets.DeviceReadBytes.Load() != 1 {
		t.Errorf("expected exactly one reset observation, got %d", m.Resets.DeviceReadBytes.Load())
	}
}

func TestIdempotence_ChangeUnderExistsEqualsLastSeenState(t *testing.T) {
	// Applying change events after exists must converge to the same model
	// as applying only the final observed state via exists (spec §8).
	m1 := model.New()
	secondary := model.RoleSecondary
	primary := model.RolePrimary
	m1.UpsertResource("foo", model.ResourceFields{Role: &secondary})
	m1.OverlayResource("foo", model.ResourceFields{Role: &primary})

	m2 := model.New()
	m2.UpsertResource("foo", model.ResourceFields{Role: &primary})

	s1, _ := m1.Snapshot("foo")
	s2, _ := m2.Snapshot("foo")
	if s1.Resource.Role != s2.Resource.Role {
		t.Errorf("expected converged role %v, got %v", s2.Resource.Role, s1.Resource.Role)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	m := model.New()
	m.UpsertResource("foo", model.ResourceFields{})
	m.UpsertDevice("foo", 0, model.DeviceFields{Backing: func() *string { s := "/dev/sdb1"; return &s }()})

	snap, ok := m.Snapshot("foo")
	if !ok {
		t.Fatal("expected snapshot")
	}
	snap.Resource.Devices[0].Backing = "mutated"

	snap2, _ := m.Snapshot("foo")
	if snap2.Resource.Devices[0].Backing != "/dev/sdb1" {
		t.Errorf("mutating a snapshot must not affect the live model, got %q", snap2.Resource.Devices[0].Backing)
	}
}
