// Package subagent implements the SNMP-subagent plugin's cache (spec
// §4.6): a snapshot of the model projected into a table keyed by minor
// number, refreshed no more often than cache-max seconds, with a
// "walk continuity" window that keeps a contiguous burst of GetNext
// requests looking at one frozen snapshot even as the model churns
// underneath (spec §8 scenario 6).
package subagent

import (
	"sort"
	"sync"
	"time"

	"github.com/drbd-reactor-go/reactor/internal/model"
)

// Row is one minor-keyed entry of the projected SNMP table.
type Row struct {
	Minor      uint32
	Resource   string
	Volume     uint32
	Role       model.Role
	Disk       model.DiskState
	Quorum     bool
	PeerStates []PeerRow
}

// PeerRow is one peer device row nested under its local minor, emitted
// only when the subagent is configured with peer-states=true.
type PeerRow struct {
	PeerNodeID  uint32
	PeerDisk    model.DiskState
	Replication model.ReplState
}

// Cache holds the latest model projection plus the frozen snapshot
// currently being served to SNMP walkers (spec §4.6). The zero value is
// not usable; construct with NewCache.
type Cache struct {
	cacheMax   time.Duration
	walkWindow time.Duration
	clock      func() time.Time

	mu sync.Mutex

	latest     []model.Snapshot
	haveLatest bool

	frozen        []model.Snapshot
	haveFrozen    bool
	frozenAt      time.Time
	lastRequestAt time.Time
	forceRebuild  bool
}

// NewCache returns a Cache with the given cache-max and walk-window
// durations (spec §6 "cache-max"; spec §4.6 "A walk continuity timer
// (default 15s)"). clock defaults to time.Now if nil, overridable by
// tests.
func NewCache(cacheMax, walkWindow time.Duration, clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{cacheMax: cacheMax, walkWindow: walkWindow, clock: clock}
}

// Update records a fresh resource snapshot, replacing any prior entry
// for the same resource name. It never touches the frozen walk snapshot
// directly — only the next rebuild picks it up (spec §4.6 "the frozen
// cache" stays frozen across a churn event).
func (c *Cache) Update(snap model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := snap.Resource.Name
	for i, s := range c.latest {
		if s.Resource.Name == name {
			c.latest[i] = snap
			c.haveLatest = true
			return
		}
	}
	c.latest = append(c.latest, snap)
	c.haveLatest = true
}

// Remove drops a destroyed resource from the live projection.
func (c *Cache) Remove(resourceName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.latest {
		if s.Resource.Name == resourceName {
			c.latest = append(c.latest[:i], c.latest[i+1:]...)
			return
		}
	}
}

// EndOfMIBView signals that a walk just reached the end of the table;
// the next request always rebuilds (spec §4.6 "An End-of-MIB-View
// response ... arms a rebuild").
func (c *Cache) EndOfMIBView() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceRebuild = true
}

// Rows returns the table rows currently valid for a GetNext/GetBulk
// request, rebuilding the frozen snapshot first if this request falls
// outside the walk-continuity window, a fresh cache-max expiry has
// elapsed, or EndOfMIBView armed a rebuild (spec §4.6, scenario 6).
func (c *Cache) Rows(peerStates bool) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	needsRebuild := c.forceRebuild ||
		!c.haveFrozen ||
		now.Sub(c.frozenAt) >= c.cacheMax ||
		(!c.lastRequestAt.IsZero() && now.Sub(c.lastRequestAt) > c.walkWindow)

	if needsRebuild {
		c.frozen = append([]model.Snapshot(nil), c.latest...)
		c.frozenAt = now
		c.haveFrozen = true
		c.forceRebuild = false
	}
	c.lastRequestAt = now

	return project(c.frozen, peerStates)
}

func project(snaps []model.Snapshot, peerStates bool) []Row {
	var rows []Row
	for _, s := range snaps {
		r := s.Resource
		for vol, d := range r.Devices {
			row := Row{Minor: d.Minor, Resource: r.Name, Volume: vol, Role: r.Role, Disk: d.Disk, Quorum: d.Quorum}
			if peerStates {
				for _, conn := range r.Connections {
					if pd, ok := conn.PeerDevices[vol]; ok {
						row.PeerStates = append(row.PeerStates, PeerRow{
							PeerNodeID:  conn.PeerNodeID,
							PeerDisk:    pd.PeerDisk,
							Replication: pd.Replication,
						})
					}
				}
				sort.Slice(row.PeerStates, func(i, j int) bool {
					return row.PeerStates[i].PeerNodeID < row.PeerStates[j].PeerNodeID
				})
			}
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Minor < rows[j].Minor })
	return rows
}
