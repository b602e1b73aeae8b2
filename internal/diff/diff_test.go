package diff_test

import (
	"testing"

	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/model"
)

// Scenario 1 from spec §8: exists followed by a may-promote/promotion-score
// change produces exactly one ResourceRole update with the documented
// old/new values.
func TestScenario1_ResourceRoleUpdateOnChange(t *testing.T) {
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
	before, after, _ := m.OverlayResource("foo", model.ResourceFields{
		MayPromote:     &trueVal,
		PromotionScore: &score,
	})

	snap, _ := m.Snapshot("foo")
	upd, emitted := diff.ResourceRole(diff.EventChange, "foo", before, after, snap)
	if !emitted {
		t.Fatal("expected a ResourceRole update to be emitted")
	}
	oldSub := upd.Old.(diff.ResourceRoleSubset)
	newSub := upd.New.(diff.ResourceRoleSubset)
	if oldSub.MayPromote != false || newSub.MayPromote != true {
		t.Errorf("expected may_promote false->true, got %v->%v", oldSub.MayPromote, newSub.MayPromote)
	}
	if newSub.PromotionScore != 10000 {
		t.Errorf("expected new promotion_score=10000, got %d", newSub.PromotionScore)
	}
	if oldSub.Role != model.RoleSecondary || newSub.Role != model.RoleSecondary {
		t.Errorf("role is unaffected by this change and must read Secondary on both sides")
	}
}

func TestNoUpdate_WhenDimensionFieldsUnchanged(t *testing.T) {
	m := model.New()
	m.UpsertResource("foo", model.ResourceFields{})
	before, after, _ := m.OverlayResource("foo", model.ResourceFields{})
	snap, _ := m.Snapshot("foo")

	if _, emitted := diff.ResourceRole(diff.EventChange, "foo", before, after, snap); emitted {
		t.Fatal("expected no update when no dimension field changed")
	}
}

func TestCreateEvent_AlwaysEmitsFullCoverageUpdate(t *testing.T) {
	m := model.New()
	before, after, _ := m.UpsertResource("foo", model.ResourceFields{})
	snap, _ := m.Snapshot("foo")

	upd, emitted := diff.ResourceRole(diff.EventCreate, "foo", before, after, snap)
	if !emitted {
		t.Fatal("create events must always emit, even with no field changes")
	}
	if upd.Old.(diff.ResourceRoleSubset) != (diff.ResourceRoleSubset{Role: model.RoleUnknown}) {
		t.Errorf("create's synthetic old must equal documented null defaults, got %+v", upd.Old)
	}
}

func TestDestroyEvent_OldIsFinalStateNewIsNullDefaults(t *testing.T) {
	m := model.New()
	primary := model.RolePrimary
	trueVal := true
	m.UpsertResource("foo", model.ResourceFields{Role: &primary, MayPromote: &trueVal})
	final, _ := m.DestroyResource("foo")

	nullDefaults := model.ResourceFields{}.Default()
	upd, emitted := diff.ResourceRole(diff.EventDestroy, "foo", final, nullDefaults, model.Snapshot{})
	if !emitted {
		t.Fatal("destroy must always emit")
	}
	oldSub := upd.Old.(diff.ResourceRoleSubset)
	newSub := upd.New.(diff.ResourceRoleSubset)
	if oldSub.Role != model.RolePrimary {
		t.Errorf("expected old.role=Primary (final observed state), got %v", oldSub.Role)
	}
	if newSub.Role != model.RoleUnknown || newSub.MayPromote != false {
		t.Errorf("expected new subset to equal null defaults, got %+v", newSub)
	}
}

func TestDeviceDimension_CarriesVolumeKey(t *testing.T) {
	m := model.New()
	m.UpsertResource("foo", model.ResourceFields{})
	upToDate := model.DiskUpToDate
	before, after, _, _ := m.UpsertDevice("foo", 3, model.DeviceFields{Disk: &upToDate})
	snap, _ := m.Snapshot("foo")

	upd, emitted := diff.Device(diff.EventCreate, "foo", 3, before, after, snap)
	if !emitted {
		t.Fatal("expected a device update")
	}
	if upd.Volume == nil || *upd.Volume != 3 {
		t.Fatalf("expected volume key 3, got %v", upd.Volume)
	}
}
