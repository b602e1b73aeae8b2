// Package diff implements the change-derivation engine (spec §4.2): it
// compares the before/after field snapshots returned by a model.Model
// mutation and emits one PluginUpdate per observable dimension that
// changed. Model mutation results always carry fully-populated Fields
// (every pointer non-nil; see model.Resource.fieldsSnapshot and friends),
// so the comparisons here never need to guard against nil.
package diff

import "github.com/drbd-reactor-go/reactor/internal/model"

// EventType is the literal wire event-type that produced a mutation,
// carried through to every PluginUpdate derived from it (spec §4 "where
// event-type ∈ {exists, create, change, destroy}").
type EventType uint8

const (
	EventChange EventType = iota
	EventExists
	EventCreate
	EventDestroy
)

func (e EventType) String() string {
	switch e {
	case EventExists:
		return "exists"
	case EventCreate:
		return "create"
	case EventDestroy:
		return "destroy"
	default:
		return "change"
	}
}

// Dimension is one of the four observable change dimensions (spec §4.2).
type Dimension uint8

const (
	DimensionResourceRole Dimension = iota
	DimensionDevice
	DimensionPeerDevice
	DimensionConnection
)

func (d Dimension) String() string {
	switch d {
	case DimensionDevice:
		return "device"
	case DimensionPeerDevice:
		return "peer_device"
	case DimensionConnection:
		return "connection"
	default:
		return "resource_role"
	}
}

// ResourceRoleSubset is the old/new subset for DimensionResourceRole.
type ResourceRoleSubset struct {
	Role            model.Role
	MayPromote      bool
	PromotionScore  int64
	Suspended       bool
	ForceIOFailures bool
}

// DeviceSubset is the old/new subset for DimensionDevice.
type DeviceSubset struct {
	Disk    model.DiskState
	Client  bool
	Quorum  bool
	Open    bool
	Backing string
}

// PeerDeviceSubset is the old/new subset for DimensionPeerDevice.
type PeerDeviceSubset struct {
	PeerDisk        model.DiskState
	PeerClient      bool
	ResyncSuspended bool
	Replication     model.ReplState
}

// ConnectionSubset is the old/new subset for DimensionConnection.
type ConnectionSubset struct {
	State     model.ConnState
	PeerRole  model.Role
	Congested bool
	Name      string
}

// PluginUpdate is the typed record fanned out to every plugin worker
// (spec §4.2, §4.3 notification contract). Old and New hold a value of
// the subset type matching Dimension (ResourceRoleSubset, DeviceSubset,
// PeerDeviceSubset, or ConnectionSubset) — callers that know the
// Dimension can type-assert directly.
type PluginUpdate struct {
	Dimension Dimension
	EventType EventType

	ResourceName string
	Volume       *uint32 // set for DimensionDevice, DimensionPeerDevice
	PeerNodeID   *uint32 // set for DimensionPeerDevice, DimensionConnection

	Old, New any

	Snapshot model.Snapshot
}

func u32p(v uint32) *uint32 { return &v }

// ResourceRole compares a Resource mutation's before/after fields and
// returns a PluginUpdate iff any field in the dimension changed, or
// unconditionally for create/destroy (spec §4.2 "A create event ...
// emits full-coverage updates; a destroy event emits updates with the
// final state as old").
func ResourceRole(evt EventType, name string, before, after model.ResourceFields, snap model.Snapshot) (PluginUpdate, bool) {
	oldSub := resourceRoleSubset(before)
	newSub := resourceRoleSubset(after)
	if evt != EventCreate && evt != EventDestroy && oldSub == newSub {
		return PluginUpdate{}, false
	}
	return PluginUpdate{
		Dimension:    DimensionResourceRole,
		EventType:    evt,
		ResourceName: name,
		Old:          oldSub,
		New:          newSub,
		Snapshot:     snap,
	}, true
}

func resourceRoleSubset(f model.ResourceFields) ResourceRoleSubset {
	return ResourceRoleSubset{
		Role:            deref(f.Role, model.RoleUnknown),
		MayPromote:      deref(f.MayPromote, false),
		PromotionScore:  deref(f.PromotionScore, 0),
		Suspended:       deref(f.Suspended, false),
		ForceIOFailures: deref(f.ForceIOFailures, false),
	}
}

// Device compares a Device mutation's before/after fields.
func Device(evt EventType, resourceName string, volume uint32, before, after model.DeviceFields, snap model.Snapshot) (PluginUpdate, bool) {
	oldSub := deviceSubset(before)
	newSub := deviceSubset(after)
	if evt != EventCreate && evt != EventDestroy && oldSub == newSub {
		return PluginUpdate{}, false
	}
	return PluginUpdate{
		Dimension:    DimensionDevice,
		EventType:    evt,
		ResourceName: resourceName,
		Volume:       u32p(volume),
		Old:          oldSub,
		New:          newSub,
		Snapshot:     snap,
	}, true
}

func deviceSubset(f model.DeviceFields) DeviceSubset {
	return DeviceSubset{
		Disk:    deref(f.Disk, model.DiskDiskless),
		Client:  deref(f.Client, false),
		Quorum:  deref(f.Quorum, false),
		Open:    deref(f.Open, false),
		Backing: deref(f.Backing, "none"),
	}
}

// PeerDevice compares a PeerDevice mutation's before/after fields.
func PeerDevice(evt EventType, resourceName string, peerNodeID, volume uint32, before, after model.PeerDeviceFields, snap model.Snapshot) (PluginUpdate, bool) {
	oldSub := peerDeviceSubset(before)
	newSub := peerDeviceSubset(after)
	if evt != EventCreate && evt != EventDestroy && oldSub == newSub {
		return PluginUpdate{}, false
	}
	return PluginUpdate{
		Dimension:    DimensionPeerDevice,
		EventType:    evt,
		ResourceName: resourceName,
		Volume:       u32p(volume),
		PeerNodeID:   u32p(peerNodeID),
		Old:          oldSub,
		New:          newSub,
		Snapshot:     snap,
	}, true
}

func peerDeviceSubset(f model.PeerDeviceFields) PeerDeviceSubset {
	return PeerDeviceSubset{
		PeerDisk:        deref(f.PeerDisk, model.DiskUnknown),
		PeerClient:      deref(f.PeerClient, false),
		ResyncSuspended: deref(f.ResyncSuspended, false),
		Replication:     deref(f.Replication, model.ReplOff),
	}
}

// Connection compares a Connection mutation's before/after fields.
func Connection(evt EventType, resourceName string, peerNodeID uint32, before, after model.ConnectionFields, snap model.Snapshot) (PluginUpdate, bool) {
	oldSub := connectionSubset(before)
	newSub := connectionSubset(after)
	if evt != EventCreate && evt != EventDestroy && oldSub == newSub {
		return PluginUpdate{}, false
	}
	return PluginUpdate{
		Dimension:    DimensionConnection,
		EventType:    evt,
		ResourceName: resourceName,
		PeerNodeID:   u32p(peerNodeID),
		Old:          oldSub,
		New:          newSub,
		Snapshot:     snap,
	}, true
}

func connectionSubset(f model.ConnectionFields) ConnectionSubset {
	return ConnectionSubset{
		State:     deref(f.State, model.ConnStandAlone),
		PeerRole:  deref(f.PeerRole, model.RoleUnknown),
		Congested: deref(f.Congested, false),
		Name:      deref(f.Name, ""),
	}
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
