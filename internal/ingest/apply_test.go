package ingest

import (
	"testing"

	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/model"
)

func TestApply_ExistsThenChange_Scenario1(t *testing.T) {
	m := model.New()

	pl1, err := Parse(`exists resource name:foo role:Secondary may-promote:no suspended:no`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Apply(m, pl1); err != nil {
		t.Fatalf("apply exists: %v", err)
	}

	pl2, err := Parse(`change resource name:foo may-promote:yes promotion-score:10000`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	updates, err := Apply(m, pl2)
	if err != nil {
		t.Fatalf("apply change: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(updates))
	}
	if updates[0].Dimension != diff.DimensionResourceRole {
		t.Fatalf("expected a ResourceRole update, got %v", updates[0].Dimension)
	}
	newSub := updates[0].New.(diff.ResourceRoleSubset)
	if newSub.MayPromote != true || newSub.PromotionScore != 10000 {
		t.Fatalf("unexpected new subset: %+v", newSub)
	}
}

func TestApply_ChangeOnUnknownResourceFails(t *testing.T) {
	m := model.New()
	pl, _ := Parse(`change resource name:nosuch role:Primary`)
	if _, err := Apply(m, pl); err == nil {
		t.Fatal("expected an error changing an unknown resource")
	}
}

func TestApply_DestroyResource_SuppressesDescendantUpdatesUntilRecreate(t *testing.T) {
	m := model.New()
	mustApply(t, m, `exists resource name:foo role:Secondary`)
	mustApply(t, m, `exists device name:foo volume:0 disk:UpToDate`)

	mustApply(t, m, `destroy resource name:foo`)

	pl, _ := Parse(`change device name:foo volume:0 disk:Outdated`)
	if _, err := Apply(m, pl); err == nil {
		t.Fatal("expected a change on a device under a destroyed resource to fail")
	}

	mustApply(t, m, `exists resource name:foo role:Secondary`)
	updates := mustApply(t, m, `exists device name:foo volume:0 disk:UpToDate`)
	if len(updates) != 1 || updates[0].Dimension != diff.DimensionDevice {
		t.Fatalf("expected the recreated device to emit one Device update, got %+v", updates)
	}
}

func TestApply_DeviceCreate_CarriesVolumeAndResourceName(t *testing.T) {
	m := model.New()
	mustApply(t, m, `exists resource name:foo role:Secondary`)
	updates := mustApply(t, m, `exists device name:foo volume:2 disk:UpToDate backing:"/dev/sdb1"`)
	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	u := updates[0]
	if u.ResourceName != "foo" || u.Volume == nil || *u.Volume != 2 {
		t.Fatalf("unexpected identifying keys: name=%q volume=%v", u.ResourceName, u.Volume)
	}
	newSub := u.New.(diff.DeviceSubset)
	if newSub.Backing != "/dev/sdb1" {
		t.Fatalf("expected backing path preserved, got %q", newSub.Backing)
	}
}

func mustApply(t *testing.T, m *model.Model, line string) []diff.PluginUpdate {
	t.Helper()
	pl, err := Parse(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	updates, err := Apply(m, pl)
	if err != nil {
		t.Fatalf("apply %q: %v", line, err)
	}
	return updates
}
