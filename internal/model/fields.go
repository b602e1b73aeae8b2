// Package model — fields.go
//
// "Fields" types mirror their entity counterparts in types.go but make
// every field optional (pointer), so the ingester can express "exists/
// create: full default-backed set" vs "change: only the keys present on
// the wire" (spec §4.1 "Application rules") with a single shape.
//
// A nil field in a Fields value means "not supplied on this event line".
// Default() fills every nil with the documented default for a brand-new
// entity; overlay (applied by Model) only ever touches non-nil fields.

package model

// ResourceFields is the optional-field counterpart of Resource.
type ResourceFields struct {
	Role            *Role
	Suspended       *bool
	WriteOrdering   *string
	ForceIOFailures *bool
	MayPromote      *bool
	PromotionScore  *int64
}

// Default returns f with every unset field filled with its documented
// zero-value default, for use on exists/create events (spec §4.1).
func (f ResourceFields) Default() ResourceFields {
	if f.Role == nil {
		f.Role = rolePtr(RoleUnknown)
	}
	if f.Suspended == nil {
		f.Suspended = boolPtr(false)
	}
	if f.WriteOrdering == nil {
		f.WriteOrdering = strPtr("")
	}
	if f.ForceIOFailures == nil {
		f.ForceIOFailures = boolPtr(false)
	}
	if f.MayPromote == nil {
		f.MayPromote = boolPtr(false)
	}
	if f.PromotionScore == nil {
		f.PromotionScore = int64Ptr(0)
	}
	return f
}

func (r *Resource) fieldsSnapshot() ResourceFields {
	return ResourceFields{
		Role:            rolePtr(r.Role),
		Suspended:       boolPtr(r.Suspended),
		WriteOrdering:   strPtr(r.WriteOrdering),
		ForceIOFailures: boolPtr(r.ForceIOFailures),
		MayPromote:      boolPtr(r.MayPromote),
		PromotionScore:  int64Ptr(r.PromotionScore),
	}
}

func (r *Resource) overlay(f ResourceFields) {
	if f.Role != nil {
		r.Role = *f.Role
	}
	if f.Suspended != nil {
		r.Suspended = *f.Suspended
	}
	if f.WriteOrdering != nil {
		r.WriteOrdering = *f.WriteOrdering
	}
	if f.ForceIOFailures != nil {
		r.ForceIOFailures = *f.ForceIOFailures
	}
	if f.MayPromote != nil {
		r.MayPromote = *f.MayPromote
	}
	if f.PromotionScore != nil {
		r.PromotionScore = *f.PromotionScore
	}
}

// DeviceFields is the optional-field counterpart of Device.
type DeviceFields struct {
	Minor   *uint32
	Backing *string
	Disk    *DiskState
	Client  *bool
	Quorum  *bool
	Open    *bool

	ReadBytes    *uint64
	WrittenBytes *uint64
	ALWrites     *uint64
	BMWrites     *uint64

	UpperPending *uint32
	LowerPending *uint32

	ALSuspended *bool
	Size        *uint64
	Blocked     *string
}

// Default fills unset fields with documented defaults for a new Device.
// Open and Quorum default to false and are not authoritative until an
// exists/create event supplies them (spec §3 invariant 2).
func (f DeviceFields) Default() DeviceFields {
	if f.Minor == nil {
		f.Minor = u32Ptr(0)
	}
	if f.Backing == nil {
		f.Backing = strPtr("none")
	}
	if f.Disk == nil {
		f.Disk = diskPtr(DiskDiskless)
	}
	if f.Client == nil {
		f.Client = boolPtr(false)
	}
	if f.Quorum == nil {
		f.Quorum = boolPtr(false)
	}
	if f.Open == nil {
		f.Open = boolPtr(false)
	}
	if f.ReadBytes == nil {
		f.ReadBytes = u64Ptr(0)
	}
	if f.WrittenBytes == nil {
		f.WrittenBytes = u64Ptr(0)
	}
	if f.ALWrites == nil {
		f.ALWrites = u64Ptr(0)
	}
	if f.BMWrites == nil {
		f.BMWrites = u64Ptr(0)
	}
	if f.UpperPending == nil {
		f.UpperPending = u32Ptr(0)
	}
	if f.LowerPending == nil {
		f.LowerPending = u32Ptr(0)
	}
	if f.ALSuspended == nil {
		f.ALSuspended = boolPtr(false)
	}
	if f.Size == nil {
		f.Size = u64Ptr(0)
	}
	if f.Blocked == nil {
		f.Blocked = strPtr("")
	}
	return f
}

func (d *Device) fieldsSnapshot() DeviceFields {
	return DeviceFields{
		Minor: u32Ptr(d.Minor), Backing: strPtr(d.Backing), Disk: diskPtr(d.Disk),
		Client: boolPtr(d.Client), Quorum: boolPtr(d.Quorum), Open: boolPtr(d.Open),
		ReadBytes: u64Ptr(d.ReadBytes), WrittenBytes: u64Ptr(d.WrittenBytes),
		ALWrites: u64Ptr(d.ALWrites), BMWrites: u64Ptr(d.BMWrites),
		UpperPending: u32Ptr(d.UpperPending), LowerPending: u32Ptr(d.LowerPending),
		ALSuspended: boolPtr(d.ALSuspended), Size: u64Ptr(d.Size), Blocked: strPtr(d.Blocked),
	}
}

// overlay applies non-nil fields to d, honoring the counter-monotonicity
// reset heuristic (spec §4.1): a counter that decreases is re-baselined to
// the new value rather than emitting a negative delta. Re-baselining here
// simply means "the stored value becomes the new observed value" — it is
// the diff engine's job to never synthesize a negative delta from it.
func (d *Device) overlay(f DeviceFields) {
	if f.Minor != nil {
		d.Minor = *f.Minor
	}
	if f.Backing != nil {
		d.Backing = *f.Backing
	}
	if f.Disk != nil {
		d.Disk = *f.Disk
	}
	if f.Client != nil {
		d.Client = *f.Client
	}
	if f.Quorum != nil {
		d.Quorum = *f.Quorum
	}
	if f.Open != nil {
		d.Open = *f.Open
	}
	if f.ReadBytes != nil {
		d.ReadBytes = *f.ReadBytes
	}
	if f.WrittenBytes != nil {
		d.WrittenBytes = *f.WrittenBytes
	}
	if f.ALWrites != nil {
		d.ALWrites = *f.ALWrites
	}
	if f.BMWrites != nil {
		d.BMWrites = *f.BMWrites
	}
	if f.UpperPending != nil {
		d.UpperPending = *f.UpperPending
	}
	if f.LowerPending != nil {
		d.LowerPending = *f.LowerPending
	}
	if f.ALSuspended != nil {
		d.ALSuspended = *f.ALSuspended
	}
	if f.Size != nil {
		d.Size = *f.Size
	}
	if f.Blocked != nil {
		d.Blocked = *f.Blocked
	}
}

// ConnectionFields is the optional-field counterpart of Connection.
type ConnectionFields struct {
	Name      *string
	State     *ConnState
	PeerRole  *Role
	Congested *bool

	APInFlight *uint64
	RSInFlight *uint64
}

func (f ConnectionFields) Default() ConnectionFields {
	if f.Name == nil {
		f.Name = strPtr("")
	}
	if f.State == nil {
		f.State = connPtr(ConnStandAlone)
	}
	if f.PeerRole == nil {
		f.PeerRole = rolePtr(RoleUnknown)
	}
	if f.Congested == nil {
		f.Congested = boolPtr(false)
	}
	if f.APInFlight == nil {
		f.APInFlight = u64Ptr(0)
	}
	if f.RSInFlight == nil {
		f.RSInFlight = u64Ptr(0)
	}
	return f
}

func (c *Connection) fieldsSnapshot() ConnectionFields {
	return ConnectionFields{
		Name: strPtr(c.Name), State: connPtr(c.State), PeerRole: rolePtr(c.PeerRole),
		Congested: boolPtr(c.Congested), APInFlight: u64Ptr(c.APInFlight), RSInFlight: u64Ptr(c.RSInFlight),
	}
}

func (c *Connection) overlay(f ConnectionFields) {
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.State != nil {
		c.State = *f.State
	}
	if f.PeerRole != nil {
		c.PeerRole = *f.PeerRole
	}
	if f.Congested != nil {
		c.Congested = *f.Congested
	}
	if f.APInFlight != nil {
		c.APInFlight = *f.APInFlight
	}
	if f.RSInFlight != nil {
		c.RSInFlight = *f.RSInFlight
	}
}

// PeerDeviceFields is the optional-field counterpart of PeerDevice.
type PeerDeviceFields struct {
	PeerDisk        *DiskState
	PeerClient      *bool
	ResyncSuspended *bool
	Replication     *ReplState

	BytesSent     *uint64
	BytesReceived *uint64
	OutOfSync     *uint64
}

func (f PeerDeviceFields) Default() PeerDeviceFields {
	if f.PeerDisk == nil {
		f.PeerDisk = diskPtr(DiskUnknown)
	}
	if f.PeerClient == nil {
		f.PeerClient = boolPtr(false)
	}
	if f.ResyncSuspended == nil {
		f.ResyncSuspended = boolPtr(false)
	}
	if f.Replication == nil {
		f.Replication = replPtr(ReplOff)
	}
	if f.BytesSent == nil {
		f.BytesSent = u64Ptr(0)
	}
	if f.BytesReceived == nil {
		f.BytesReceived = u64Ptr(0)
	}
	if f.OutOfSync == nil {
		f.OutOfSync = u64Ptr(0)
	}
	return f
}

func (p *PeerDevice) fieldsSnapshot() PeerDeviceFields {
	return PeerDeviceFields{
		PeerDisk: diskPtr(p.PeerDisk), PeerClient: boolPtr(p.PeerClient),
		ResyncSuspended: boolPtr(p.ResyncSuspended), Replication: replPtr(p.Replication),
		BytesSent: u64Ptr(p.BytesSent), BytesReceived: u64Ptr(p.BytesReceived), OutOfSync: u64Ptr(p.OutOfSync),
	}
}

func (p *PeerDevice) overlay(f PeerDeviceFields) {
	if f.PeerDisk != nil {
		p.PeerDisk = *f.PeerDisk
	}
	if f.PeerClient != nil {
		p.PeerClient = *f.PeerClient
	}
	if f.ResyncSuspended != nil {
		p.ResyncSuspended = *f.ResyncSuspended
	}
	if f.Replication != nil {
		p.Replication = *f.Replication
	}
	if f.BytesSent != nil {
		p.BytesSent = *f.BytesSent
	}
	if f.BytesReceived != nil {
		p.BytesReceived = *f.BytesReceived
	}
	if f.OutOfSync != nil {
		p.OutOfSync = *f.OutOfSync
	}
}

func rolePtr(v Role) *Role             { return &v }
func diskPtr(v DiskState) *DiskState   { return &v }
func connPtr(v ConnState) *ConnState   { return &v }
func replPtr(v ReplState) *ReplState   { return &v }
func boolPtr(v bool) *bool             { return &v }
func strPtr(v string) *string          { return &v }
func int64Ptr(v int64) *int64          { return &v }
func u32Ptr(v uint32) *uint32          { return &v }
func u64Ptr(v uint64) *uint64          { return &v }
