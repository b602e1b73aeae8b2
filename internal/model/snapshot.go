// Package model — snapshot.go
//
// Immutable, deep-copied snapshots attached to every PluginUpdate (spec §4.2
// "The full-resource snapshot attached to every update is a deep copy taken
// after mutation, so plugins never race the ingester").
//
// Snapshot sharing follows design note §9: plugins receive their own
// deep-copied Snapshot value, never a pointer into the live model. This file
// is the only place a Resource is copied field-by-field; every other
// consumer of a Resource (diff engine, plugins) only ever sees the result
// of Snapshot().

package model

// Snapshot is an immutable deep copy of a Resource at a point in time.
// Safe to share across goroutines without synchronization.
type Snapshot struct {
	Resource Resource
}

// Snapshot produces a deep copy of r. Maps are copied element-by-element;
// no returned value shares storage with r.
func (r *Resource) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}

	cp := *r

	cp.Devices = make(map[uint32]*Device, len(r.Devices))
	for vol, d := range r.Devices {
		dc := *d
		cp.Devices[vol] = &dc
	}

	cp.Connections = make(map[uint32]*Connection, len(r.Connections))
	for peer, c := range r.Connections {
		cc := *c
		cc.PeerDevices = make(map[uint32]*PeerDevice, len(c.PeerDevices))
		for vol, pd := range c.PeerDevices {
			pc := *pd
			cc.PeerDevices[vol] = &pc
		}
		cp.Connections[peer] = &cc
	}

	return Snapshot{Resource: cp}
}

// Device looks up a device by volume id in the snapshot.
func (s Snapshot) Device(volume uint32) (Device, bool) {
	d, ok := s.Resource.Devices[volume]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Connection looks up a connection by peer-node-id in the snapshot.
func (s Snapshot) Connection(peerNodeID uint32) (Connection, bool) {
	c, ok := s.Resource.Connections[peerNodeID]
	if !ok {
		return Connection{}, false
	}
	cp := *c
	return cp, true
}

// PeerDevice looks up a peer device by (peer-node-id, volume) in the snapshot.
func (s Snapshot) PeerDevice(peerNodeID, volume uint32) (PeerDevice, bool) {
	c, ok := s.Resource.Connections[peerNodeID]
	if !ok {
		return PeerDevice{}, false
	}
	pd, ok := c.PeerDevices[volume]
	if !ok {
		return PeerDevice{}, false
	}
	return *pd, true
}
