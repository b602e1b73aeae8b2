// Package model — types.go
//
// Core entity types for the replicated-resource data model (spec §3).
//
// The model is single-writer: only the ingester goroutine ever mutates a
// Resource, Device, Connection, or PeerDevice. Every other component reads
// immutable Snapshot values (see snapshot.go) handed to it by the
// change-derivation engine.

package model

import "time"

// Role is a Resource's replication role.
type Role uint8

const (
	RoleUnknown Role = iota
	RolePrimary
	RoleSecondary
)

// String returns the human-readable role name.
func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "Primary"
	case RoleSecondary:
		return "Secondary"
	default:
		return "Unknown"
	}
}

// ParseRole validates a role value against the closed set in spec §3.
// Unrecognized values return (RoleUnknown, false); the caller must leave
// the field at its prior value rather than overwrite it with Unknown.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "Primary":
		return RolePrimary, true
	case "Secondary":
		return RoleSecondary, true
	case "Unknown":
		return RoleUnknown, true
	default:
		return RoleUnknown, false
	}
}

// DiskState is a Device's local disk state.
type DiskState uint8

const (
	DiskDiskless DiskState = iota
	DiskAttaching
	DiskDetaching
	DiskFailed
	DiskNegotiating
	DiskInconsistent
	DiskOutdated
	DiskUnknown
	DiskConsistent
	DiskUpToDate
)

var diskStateNames = [...]string{
	"Diskless", "Attaching", "Detaching", "Failed", "Negotiating",
	"Inconsistent", "Outdated", "DUnknown", "Consistent", "UpToDate",
}

func (d DiskState) String() string {
	if int(d) < len(diskStateNames) {
		return diskStateNames[d]
	}
	return "DUnknown"
}

// ParseDiskState validates against the closed set in spec §3.
func ParseDiskState(s string) (DiskState, bool) {
	for i, name := range diskStateNames {
		if name == s {
			return DiskState(i), true
		}
	}
	return DiskUnknown, false
}

// ConnState is a Connection's link state.
type ConnState uint8

const (
	ConnStandAlone ConnState = iota
	ConnDisconnecting
	ConnUnconnected
	ConnTimeout
	ConnBrokenPipe
	ConnNetworkFailure
	ConnProtocolError
	ConnTearDown
	ConnConnecting
	ConnConnected
)

var connStateNames = [...]string{
	"StandAlone", "Disconnecting", "Unconnected", "Timeout", "BrokenPipe",
	"NetworkFailure", "ProtocolError", "TearDown", "Connecting", "Connected",
}

func (c ConnState) String() string {
	if int(c) < len(connStateNames) {
		return connStateNames[c]
	}
	return "StandAlone"
}

// ParseConnState validates against the closed set in spec §3.
func ParseConnState(s string) (ConnState, bool) {
	for i, name := range connStateNames {
		if name == s {
			return ConnState(i), true
		}
	}
	return ConnStandAlone, false
}

// ReplState is a PeerDevice's replication state. 15 enumerated values
// per spec §3; names follow DRBD's protocol state machine.
type ReplState uint8

const (
	ReplOff ReplState = iota
	ReplEstablished
	ReplStartingSyncS
	ReplStartingSyncT
	ReplWFBitMapS
	ReplWFBitMapT
	ReplWFSyncUUID
	ReplSyncSource
	ReplSyncTarget
	ReplVerifyS
	ReplVerifyT
	ReplPausedSyncS
	ReplPausedSyncT
	ReplAhead
	ReplBehind
)

var replStateNames = [...]string{
	"Off", "Established", "StartingSyncS", "StartingSyncT", "WFBitMapS",
	"WFBitMapT", "WFSyncUUID", "SyncSource", "SyncTarget", "VerifyS",
	"VerifyT", "PausedSyncS", "PausedSyncT", "Ahead", "Behind",
}

func (r ReplState) String() string {
	if int(r) < len(replStateNames) {
		return replStateNames[r]
	}
	return "Off"
}

// ParseReplState validates against the closed set in spec §3.
func ParseReplState(s string) (ReplState, bool) {
	for i, name := range replStateNames {
		if name == s {
			return ReplState(i), true
		}
	}
	return ReplOff, false
}

// Device is a local block endpoint of one volume of one Resource.
// Authoritative fields (Open, Quorum) are meaningless until a Create/Exists
// event has been observed for this volume (spec §3 invariant 2).
type Device struct {
	Volume  uint32
	Minor   uint32
	Backing string // "none" when diskless
	Disk    DiskState
	Client  bool
	Quorum  bool
	Open    bool

	ReadBytes    uint64
	WrittenBytes uint64
	ALWrites     uint64
	BMWrites     uint64

	UpperPending uint32
	LowerPending uint32

	ALSuspended bool
	Size        uint64
	Blocked     string // "", "upper", "lower", "upper/lower"
}

// Connection is a replication link to one peer node.
type Connection struct {
	PeerNodeID uint32
	Name       string
	State      ConnState
	PeerRole   Role
	Congested  bool

	APInFlight uint64
	RSInFlight uint64

	PeerDevices map[uint32]*PeerDevice // keyed by volume id
}

// PeerDevice is the remote-side view of a Device, carried over a Connection.
type PeerDevice struct {
	Volume         uint32
	PeerNodeID     uint32
	PeerDisk       DiskState
	PeerClient     bool
	ResyncSuspended bool
	Replication    ReplState

	BytesSent     uint64
	BytesReceived uint64
	OutOfSync     uint64
}

// Resource is the unit of replication: a name, a role, and its devices,
// connections, and (per connection) peer devices.
type Resource struct {
	Name string

	Role             Role
	Suspended        bool
	WriteOrdering    string
	ForceIOFailures  bool
	MayPromote       bool
	PromotionScore   int64

	Devices     map[uint32]*Device     // keyed by volume id
	Connections map[uint32]*Connection // keyed by peer-node-id

	// CreatedAt records when this Resource first entered the model; used
	// only for diagnostics, never for correctness decisions.
	CreatedAt time.Time
}

// NewResource returns a Resource populated with the documented defaults
// for an event carrying only identifying keys (spec §4.1 "Application
// rules").
func NewResource(name string) *Resource {
	return &Resource{
		Name:        name,
		Role:        RoleUnknown,
		Devices:     make(map[uint32]*Device),
		Connections: make(map[uint32]*Connection),
		CreatedAt:   time.Now(),
	}
}
