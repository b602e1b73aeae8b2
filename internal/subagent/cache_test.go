package subagent

import (
	"testing"
	"time"

	"github.com/drbd-reactor-go/reactor/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func snapWithMinor(name string, minor uint32) model.Snapshot {
	return model.Snapshot{Resource: model.Resource{
		Name:    name,
		Devices: map[uint32]*model.Device{0: {Volume: 0, Minor: minor}},
	}}
}

func TestScenario6_WalkContinuityAcrossChurn(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewCache(60*time.Second, 15*time.Second, clk.now)

	c.Update(snapWithMinor("foo", 7))
	first := c.Rows(false)
	if len(first) != 1 || first[0].Minor != 7 {
		t.Fatalf("first Rows() = %+v", first)
	}

	// An intervening destroy churns the live model...
	clk.advance(5 * time.Second)
	c.Remove("foo")

	// ...but a GetNext 10s after the first, still inside the walk window,
	// must still see the frozen snapshot from the first call.
	clk.advance(5 * time.Second)
	second := c.Rows(false)
	if len(second) != 1 || second[0].Minor != 7 {
		t.Fatalf("second Rows() (within walk window) = %+v, want frozen snapshot to survive the destroy", second)
	}

	// A third GetNext 20s after the second (> walk-window) rebuilds from
	// the now-current (post-destroy, empty) live state.
	clk.advance(20 * time.Second)
	third := c.Rows(false)
	if len(third) != 0 {
		t.Fatalf("third Rows() = %+v, want rebuilt empty snapshot after gap exceeds walk window", third)
	}
}

func TestCache_FreshCacheMaxExpiry_ForcesRebuildEvenInsideWindow(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewCache(10*time.Second, 15*time.Second, clk.now)

	c.Update(snapWithMinor("foo", 1))
	c.Rows(false)

	c.Update(snapWithMinor("bar", 2))
	clk.advance(11 * time.Second) // exceeds cache-max, still inside walk-window
	rows := c.Rows(false)

	minors := map[uint32]bool{}
	for _, r := range rows {
		minors[r.Minor] = true
	}
	if !minors[1] || !minors[2] {
		t.Fatalf("expected rebuild to pick up bar's minor after cache-max expiry, got %+v", rows)
	}
}

func TestCache_EndOfMIBView_ForcesRebuildOnNextRequest(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewCache(60*time.Second, 15*time.Second, clk.now)

	c.Update(snapWithMinor("foo", 1))
	c.Rows(false)

	c.Remove("foo")
	c.EndOfMIBView()
	clk.advance(1 * time.Second) // well inside walk window

	rows := c.Rows(false)
	if len(rows) != 0 {
		t.Fatalf("expected EndOfMIBView to force a rebuild reflecting the removal, got %+v", rows)
	}
}

func TestProject_PeerStatesOnlyWhenRequested(t *testing.T) {
	snap := model.Snapshot{Resource: model.Resource{
		Name: "foo",
		Devices: map[uint32]*model.Device{0: {Volume: 0, Minor: 1}},
		Connections: map[uint32]*model.Connection{
			5: {PeerNodeID: 5, PeerDevices: map[uint32]*model.PeerDevice{0: {PeerNodeID: 5, Volume: 0, PeerDisk: model.DiskUpToDate}}},
		},
	}}

	without := project([]model.Snapshot{snap}, false)
	if len(without[0].PeerStates) != 0 {
		t.Fatalf("expected no peer states when peerStates=false, got %+v", without[0].PeerStates)
	}

	with := project([]model.Snapshot{snap}, true)
	if len(with[0].PeerStates) != 1 || with[0].PeerStates[0].PeerNodeID != 5 {
		t.Fatalf("expected one peer state, got %+v", with[0].PeerStates)
	}
}
