package webexposition

import (
	"strings"
	"testing"

	"github.com/drbd-reactor-go/reactor/internal/model"
)

func TestRender_ResourceAndDeviceLines(t *testing.T) {
	snap := model.Snapshot{Resource: model.Resource{
		Name:       "foo",
		Role:       model.RolePrimary,
		MayPromote: true,
		Devices: map[uint32]*model.Device{
			0: {Volume: 0, Minor: 7, Disk: model.DiskUpToDate, Quorum: true},
		},
	}}

	out := string(render(snap, false))
	if !strings.Contains(out, "resource foo role=Primary") {
		t.Fatalf("missing resource line: %s", out)
	}
	if !strings.Contains(out, "device volume=0 minor=7 disk=UpToDate quorum=true") {
		t.Fatalf("missing device line: %s", out)
	}
}

func TestRender_EnumsFlag_UsesNumericCodes(t *testing.T) {
	snap := model.Snapshot{Resource: model.Resource{Name: "foo", Role: model.RolePrimary}}
	out := string(render(snap, true))
	if strings.Contains(out, "role=Primary") {
		t.Fatalf("expected numeric role code with enums=true, got: %s", out)
	}
}
