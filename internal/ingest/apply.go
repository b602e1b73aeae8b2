package ingest

import (
	"fmt"

	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/model"
	"github.com/drbd-reactor-go/reactor/internal/rerr"
)

// Apply applies one parsed event line to m and returns the zero or more
// PluginUpdate records the change-derivation engine derives from it
// (spec §4.1, §4.2). ObjectPath and ObjectHelper carry no model-visible
// state in this daemon (spec marks the control utility and operator CLI
// out of scope) and ObjectSentinel only marks the end of the initial
// snapshot, so all three are accepted and produce no updates.
func Apply(m *model.Model, pl ParsedLine) ([]diff.PluginUpdate, error) {
	switch pl.Object {
	case ObjectResource:
		return applyResource(m, pl)
	case ObjectDevice:
		return applyDevice(m, pl)
	case ObjectConnection:
		return applyConnection(m, pl)
	case ObjectPeerDevice:
		return applyPeerDevice(m, pl)
	case ObjectPath, ObjectHelper, ObjectSentinel:
		return nil, nil
	default:
		return nil, rerr.New(rerr.EventMalformed, "unhandled object type")
	}
}

func resourceName(pl ParsedLine) (string, error) {
	name := keyString(pl.Keys, "name")
	if name == nil || *name == "" {
		return "", rerr.New(rerr.EventMalformed, "event line missing required key \"name\"")
	}
	return *name, nil
}

func applyResource(m *model.Model, pl ParsedLine) ([]diff.PluginUpdate, error) {
	name, err := resourceName(pl)
	if err != nil {
		return nil, err
	}

	fields := model.ResourceFields{
		Role:            keyRole(pl.Keys, "role"),
		Suspended:       keyBool(pl.Keys, "suspended"),
		WriteOrdering:   keyString(pl.Keys, "write-ordering"),
		ForceIOFailures: keyBool(pl.Keys, "force-io-failures"),
		MayPromote:      keyBool(pl.Keys, "may-promote"),
		PromotionScore:  keyInt64(pl.Keys, "promotion-score"),
	}

	var before, after model.ResourceFields
	var snap model.Snapshot

	switch pl.Event {
	case diff.EventExists, diff.EventCreate:
		before, after, _ = m.UpsertResource(name, fields)
		snap, _ = m.Snapshot(name)
	case diff.EventChange:
		var ok bool
		before, after, ok = m.OverlayResource(name, fields)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("change on unknown resource %q", name))
		}
		snap, _ = m.Snapshot(name)
	case diff.EventDestroy:
		var ok bool
		before, ok = m.DestroyResource(name)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("destroy of unknown resource %q", name))
		}
		after = model.ResourceFields{}.Default()
	}

	upd, emitted := diff.ResourceRole(pl.Event, name, before, after, snap)
	if !emitted {
		return nil, nil
	}
	return []diff.PluginUpdate{upd}, nil
}

func applyDevice(m *model.Model, pl ParsedLine) ([]diff.PluginUpdate, error) {
	name, err := resourceName(pl)
	if err != nil {
		return nil, err
	}
	volPtr := keyUint32(pl.Keys, "volume")
	if volPtr == nil {
		return nil, rerr.New(rerr.EventMalformed, "device event missing required key \"volume\"")
	}
	volume := *volPtr

	fields := model.DeviceFields{
		Minor:        keyUint32(pl.Keys, "minor"),
		Backing:      keyString(pl.Keys, "backing"),
		Disk:         keyDiskState(pl.Keys, "disk"),
		Client:       keyBool(pl.Keys, "client"),
		Quorum:       keyBool(pl.Keys, "quorum"),
		Open:         keyBool(pl.Keys, "open"),
		ReadBytes:    keyUint64(pl.Keys, "read"),
		WrittenBytes: keyUint64(pl.Keys, "written"),
		ALWrites:     keyUint64(pl.Keys, "al-writes"),
		BMWrites:     keyUint64(pl.Keys, "bm-writes"),
		UpperPending: keyUint32(pl.Keys, "upper-pending"),
		LowerPending: keyUint32(pl.Keys, "lower-pending"),
		ALSuspended:  keyBool(pl.Keys, "al-suspended"),
		Size:         keyUint64(pl.Keys, "size"),
		Blocked:      keyString(pl.Keys, "blocked"),
	}

	var before, after model.DeviceFields
	var snap model.Snapshot

	switch pl.Event {
	case diff.EventExists, diff.EventCreate:
		var ok bool
		before, after, _, ok = m.UpsertDevice(name, volume, fields)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("device event for unknown resource %q", name))
		}
		snap, _ = m.Snapshot(name)
	case diff.EventChange:
		var ok bool
		before, after, ok = m.OverlayDevice(name, volume, fields)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("change on unknown device %s/%d", name, volume))
		}
		snap, _ = m.Snapshot(name)
	case diff.EventDestroy:
		var ok bool
		before, ok = m.DestroyDevice(name, volume)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("destroy of unknown device %s/%d", name, volume))
		}
		after = model.DeviceFields{}.Default()
		snap, _ = m.Snapshot(name)
	}

	upd, emitted := diff.Device(pl.Event, name, volume, before, after, snap)
	if !emitted {
		return nil, nil
	}
	return []diff.PluginUpdate{upd}, nil
}

func applyConnection(m *model.Model, pl ParsedLine) ([]diff.PluginUpdate, error) {
	name, err := resourceName(pl)
	if err != nil {
		return nil, err
	}
	peerPtr := keyUint32(pl.Keys, "peer-node-id")
	if peerPtr == nil {
		return nil, rerr.New(rerr.EventMalformed, "connection event missing required key \"peer-node-id\"")
	}
	peerNodeID := *peerPtr

	fields := model.ConnectionFields{
		Name:       keyString(pl.Keys, "conn-name"),
		State:      keyConnState(pl.Keys, "connection"),
		PeerRole:   keyRole(pl.Keys, "role"),
		Congested:  keyBool(pl.Keys, "congested"),
		APInFlight: keyUint64(pl.Keys, "ap-in-flight"),
		RSInFlight: keyUint64(pl.Keys, "rs-in-flight"),
	}

	var before, after model.ConnectionFields
	var snap model.Snapshot

	switch pl.Event {
	case diff.EventExists, diff.EventCreate:
		var ok bool
		before, after, _, ok = m.UpsertConnection(name, peerNodeID, fields)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("connection event for unknown resource %q", name))
		}
		snap, _ = m.Snapshot(name)
	case diff.EventChange:
		var ok bool
		before, after, ok = m.OverlayConnection(name, peerNodeID, fields)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("change on unknown connection %s/%d", name, peerNodeID))
		}
		snap, _ = m.Snapshot(name)
	case diff.EventDestroy:
		var ok bool
		before, ok = m.DestroyConnection(name, peerNodeID)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("destroy of unknown connection %s/%d", name, peerNodeID))
		}
		after = model.ConnectionFields{}.Default()
		snap, _ = m.Snapshot(name)
	}

	upd, emitted := diff.Connection(pl.Event, name, peerNodeID, before, after, snap)
	if !emitted {
		return nil, nil
	}
	return []diff.PluginUpdate{upd}, nil
}

func applyPeerDevice(m *model.Model, pl ParsedLine) ([]diff.PluginUpdate, error) {
	name, err := resourceName(pl)
	if err != nil {
		return nil, err
	}
	peerPtr := keyUint32(pl.Keys, "peer-node-id")
	volPtr := keyUint32(pl.Keys, "volume")
	if peerPtr == nil || volPtr == nil {
		return nil, rerr.New(rerr.EventMalformed, "peer-device event missing required key \"peer-node-id\" or \"volume\"")
	}
	peerNodeID, volume := *peerPtr, *volPtr

	fields := model.PeerDeviceFields{
		PeerDisk:        keyDiskState(pl.Keys, "peer-disk"),
		PeerClient:      keyBool(pl.Keys, "peer-client"),
		ResyncSuspended: keyBool(pl.Keys, "resync-suspended"),
		Replication:     keyReplState(pl.Keys, "replication"),
		BytesSent:       keyUint64(pl.Keys, "sent"),
		BytesReceived:   keyUint64(pl.Keys, "received"),
		OutOfSync:       keyUint64(pl.Keys, "out-of-sync"),
	}

	var before, after model.PeerDeviceFields
	var snap model.Snapshot

	switch pl.Event {
	case diff.EventExists, diff.EventCreate:
		var ok bool
		before, after, _, ok = m.UpsertPeerDevice(name, peerNodeID, volume, fields)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("peer-device event for unknown connection %s/%d", name, peerNodeID))
		}
		snap, _ = m.Snapshot(name)
	case diff.EventChange:
		var ok bool
		before, after, ok = m.OverlayPeerDevice(name, peerNodeID, volume, fields)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("change on unknown peer-device %s/%d/%d", name, peerNodeID, volume))
		}
		snap, _ = m.Snapshot(name)
	case diff.EventDestroy:
		var ok bool
		before, ok = m.DestroyPeerDevice(name, peerNodeID, volume)
		if !ok {
			return nil, rerr.New(rerr.EventMalformed, fmt.Sprintf("destroy of unknown peer-device %s/%d/%d", name, peerNodeID, volume))
		}
		after = model.PeerDeviceFields{}.Default()
		snap, _ = m.Snapshot(name)
	}

	upd, emitted := diff.PeerDevice(pl.Event, name, peerNodeID, volume, before, after, snap)
	if !emitted {
		return nil, nil
	}
	return []diff.PluginUpdate{upd}, nil
}
