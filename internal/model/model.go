// Package model — model.go
//
// The in-memory, single-writer authoritative model of every replicated
// resource (spec §3, §4.1). Model is safe for concurrent use: mutation
// methods are intended to be called only from the ingester goroutine
// (spec invariant 4), while Snapshot/Snapshots/Names may be called from
// any goroutine (plugins read immutable copies, never the live model).

package model

import "sync"

// Model holds every known Resource, keyed by name.
type Model struct {
	mu        sync.RWMutex
	resources map[string]*Resource

	// Resets tracks statistics-reset heuristic activations (spec §4.1).
	Resets ResetCounters
}

// New returns an empty Model.
func New() *Model {
	return &Model{resources: make(map[string]*Resource)}
}

// Clear removes every resource. Called by the ingester on reload, before
// the "exists" prelude rebuilds the model from scratch (spec §3 Lifecycle).
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = make(map[string]*Resource)
}

// Names returns every known resource name, in no particular order.
func (m *Model) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.resources))
	for name := range m.resources {
		out = append(out, name)
	}
	return out
}

// Snapshot returns a deep, immutable copy of the named resource.
func (m *Model) Snapshot(name string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[name]
	if !ok {
		return Snapshot{}, false
	}
	return r.Snapshot(), true
}

// Snapshots returns a deep copy of every known resource.
func (m *Model) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r.Snapshot())
	}
	return out
}

// ─── Resource ──────────────────────────────────────────────────────────────

// UpsertResource applies an exists/create event: fields the event carries
// are set, and any field left unset by the event is reset to its
// documented default, even on an existing resource (spec §4.1 "exists/create upsert ... and
// populate absent ... fields with documented defaults").
//
// Returns the field-level state before and after the upsert, and whether
// the resource was newly created.
func (m *Model) UpsertResource(name string, f ResourceFields) (before, after ResourceFields, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resources[name]
	if !ok {
		r = NewResource(name)
		m.resources[name] = r
		created = true
	}
	before = r.fieldsSnapshot()
	r.overlay(f.Default())
	after = r.fieldsSnapshot()
	return before, after, created
}

// OverlayResource applies a change event: only fields present on f are
// mutated (spec §4.1 "change overlays only supplied fields").
// Returns ok=false if the resource is not known.
func (m *Model) OverlayResource(name string, f ResourceFields) (before, after ResourceFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resources[name]
	if !ok {
		return ResourceFields{}, ResourceFields{}, false
	}
	before = r.fieldsSnapshot()
	r.overlay(f)
	after = r.fieldsSnapshot()
	return before, after, true
}

// DestroyResource removes a resource and every descendant Device,
// Connection, and PeerDevice (spec §4.1 "destroy removes the entity and,
// if it is a Resource, all descendants"). Returns the final field state
// before removal.
func (m *Model) DestroyResource(name string) (final ResourceFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resources[name]
	if !ok {
		return ResourceFields{}, false
	}
	final = r.fieldsSnapshot()
	delete(m.resources, name)
	return final, true
}

func (m *Model) resourceLocked(name string) (*Resource, bool) {
	r, ok := m.resources[name]
	return r, ok
}

// ─── Device ────────────────────────────────────────────────────────────────

// UpsertDevice applies an exists/create event for a Device under resource.
// ok=false if the resource itself is unknown.
func (m *Model) UpsertDevice(resource string, volume uint32, f DeviceFields) (before, after DeviceFields, created, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return DeviceFields{}, DeviceFields{}, false, false
	}
	d, exists := r.Devices[volume]
	if !exists {
		d = &Device{Volume: volume}
		r.Devices[volume] = d
		created = true
	}
	before = d.fieldsSnapshot()
	d.overlay(f.Default())
	m.observeDeviceCounters(before, f)
	after = d.fieldsSnapshot()
	return before, after, created, true
}

// OverlayDevice applies a change event for a Device.
func (m *Model) OverlayDevice(resource string, volume uint32, f DeviceFields) (before, after DeviceFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return DeviceFields{}, DeviceFields{}, false
	}
	d, exists := r.Devices[volume]
	if !exists {
		return DeviceFields{}, DeviceFields{}, false
	}
	before = d.fieldsSnapshot()
	d.overlay(f)
	m.observeDeviceCounters(before, f)
	after = d.fieldsSnapshot()
	return before, after, true
}

// DestroyDevice removes a Device from its resource.
func (m *Model) DestroyDevice(resource string, volume uint32) (final DeviceFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return DeviceFields{}, false
	}
	d, exists := r.Devices[volume]
	if !exists {
		return DeviceFields{}, false
	}
	final = d.fieldsSnapshot()
	delete(r.Devices, volume)
	return final, true
}

func (m *Model) observeDeviceCounters(before DeviceFields, incoming DeviceFields) {
	if incoming.ReadBytes != nil && before.ReadBytes != nil {
		observeCounter(&m.Resets.DeviceReadBytes, *before.ReadBytes, *incoming.ReadBytes)
	}
	if incoming.WrittenBytes != nil && before.WrittenBytes != nil {
		observeCounter(&m.Resets.DeviceWrittenBytes, *before.WrittenBytes, *incoming.WrittenBytes)
	}
	if incoming.ALWrites != nil && before.ALWrites != nil {
		observeCounter(&m.Resets.DeviceALWrites, *before.ALWrites, *incoming.ALWrites)
	}
	if incoming.BMWrites != nil && before.BMWrites != nil {
		observeCounter(&m.Resets.DeviceBMWrites, *before.BMWrites, *incoming.BMWrites)
	}
}

// ─── Connection ────────────────────────────────────────────────────────────

// UpsertConnection applies an exists/create event for a Connection.
func (m *Model) UpsertConnection(resource string, peerNodeID uint32, f ConnectionFields) (before, after ConnectionFields, created, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return ConnectionFields{}, ConnectionFields{}, false, false
	}
	c, exists := r.Connections[peerNodeID]
	if !exists {
		c = &Connection{PeerNodeID: peerNodeID, PeerDevices: make(map[uint32]*PeerDevice)}
		r.Connections[peerNodeID] = c
		created = true
	}
	before = c.fieldsSnapshot()
	c.overlay(f.Default())
	after = c.fieldsSnapshot()
	return before, after, created, true
}

// OverlayConnection applies a change event for a Connection.
func (m *Model) OverlayConnection(resource string, peerNodeID uint32, f ConnectionFields) (before, after ConnectionFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return ConnectionFields{}, ConnectionFields{}, false
	}
	c, exists := r.Connections[peerNodeID]
	if !exists {
		return ConnectionFields{}, ConnectionFields{}, false
	}
	before = c.fieldsSnapshot()
	c.overlay(f)
	after = c.fieldsSnapshot()
	return before, after, true
}

// DestroyConnection removes a Connection and its PeerDevices.
func (m *Model) DestroyConnection(resource string, peerNodeID uint32) (final ConnectionFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return ConnectionFields{}, false
	}
	c, exists := r.Connections[peerNodeID]
	if !exists {
		return ConnectionFields{}, false
	}
	final = c.fieldsSnapshot()
	delete(r.Connections, peerNodeID)
	return final, true
}

// ─── PeerDevice ────────────────────────────────────────────────────────────

// UpsertPeerDevice applies an exists/create event for a PeerDevice.
func (m *Model) UpsertPeerDevice(resource string, peerNodeID, volume uint32, f PeerDeviceFields) (before, after PeerDeviceFields, created, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return PeerDeviceFields{}, PeerDeviceFields{}, false, false
	}
	c, exists := r.Connections[peerNodeID]
	if !exists {
		return PeerDeviceFields{}, PeerDeviceFields{}, false, false
	}
	pd, exists := c.PeerDevices[volume]
	if !exists {
		pd = &PeerDevice{Volume: volume, PeerNodeID: peerNodeID}
		c.PeerDevices[volume] = pd
		created = true
	}
	before = pd.fieldsSnapshot()
	pd.overlay(f.Default())
	m.observePeerCounters(before, f)
	after = pd.fieldsSnapshot()
	return before, after, created, true
}

// OverlayPeerDevice applies a change event for a PeerDevice.
func (m *Model) OverlayPeerDevice(resource string, peerNodeID, volume uint32, f PeerDeviceFields) (before, after PeerDeviceFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return PeerDeviceFields{}, PeerDeviceFields{}, false
	}
	c, exists := r.Connections[peerNodeID]
	if !exists {
		return PeerDeviceFields{}, PeerDeviceFields{}, false
	}
	pd, exists := c.PeerDevices[volume]
	if !exists {
		return PeerDeviceFields{}, PeerDeviceFields{}, false
	}
	before = pd.fieldsSnapshot()
	pd.overlay(f)
	m.observePeerCounters(before, f)
	after = pd.fieldsSnapshot()
	return before, after, true
}

// DestroyPeerDevice removes a PeerDevice from its connection.
func (m *Model) DestroyPeerDevice(resource string, peerNodeID, volume uint32) (final PeerDeviceFields, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.resourceLocked(resource)
	if !found {
		return PeerDeviceFields{}, false
	}
	c, exists := r.Connections[peerNodeID]
	if !exists {
		return PeerDeviceFields{}, false
	}
	pd, exists := c.PeerDevices[volume]
	if !exists {
		return PeerDeviceFields{}, false
	}
	final = pd.fieldsSnapshot()
	delete(c.PeerDevices, volume)
	return final, true
}

func (m *Model) observePeerCounters(before PeerDeviceFields, incoming PeerDeviceFields) {
	if incoming.BytesSent != nil && before.BytesSent != nil {
		observeCounter(&m.Resets.PeerBytesSent, *before.BytesSent, *incoming.BytesSent)
	}
	if incoming.BytesReceived != nil && before.BytesReceived != nil {
		observeCounter(&m.Resets.PeerBytesReceived, *before.BytesReceived, *incoming.BytesReceived)
	}
}
