package umh

import (
	"fmt"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/diff"
)

// baseEnv is the documented minimal environment every rule command sees
// before scope-specific and user variables are added (spec §4.5 "Before
// exec the environment is cleared and re-populated with a documented
// base").
var baseEnv = []string{
	"HOME=/",
	"TERM=Linux",
	"PATH=/sbin:/usr/sbin:/bin:/usr/bin",
}

// buildEnv assembles the full environment for one rule firing against
// upd: base env, then scope variables (resource name, and for device
// updates, minor/backing-device/per-volume keys), then old/new field
// values prefixed DRBD_OLD_*/DRBD_NEW_*, then the user-supplied map
// (spec §4.5).
func buildEnv(rule config.UMHRuleConfig, upd diff.PluginUpdate) []string {
	env := append([]string{}, baseEnv...)
	env = append(env, "DRBD_RESOURCE="+upd.ResourceName)

	if upd.Volume != nil {
		env = append(env, fmt.Sprintf("DRBD_VOLUME=%d", *upd.Volume))
	}
	if upd.PeerNodeID != nil {
		env = append(env, fmt.Sprintf("DRBD_PEER_NODE_ID=%d", *upd.PeerNodeID))
	}

	if upd.Dimension == diff.DimensionDevice {
		if sub, ok := upd.New.(diff.DeviceSubset); ok && upd.Volume != nil {
			if d, found := upd.Snapshot.Device(*upd.Volume); found {
				env = append(env, fmt.Sprintf("DRBD_MINOR_%d=%d", *upd.Volume, d.Minor))
			}
			env = append(env, fmt.Sprintf("DRBD_BACKING_DEV_%d=%s", *upd.Volume, sub.Backing))
		}
	}

	env = append(env, fieldEnv("DRBD_OLD_", upd.Old)...)
	env = append(env, fieldEnv("DRBD_NEW_", upd.New)...)

	for k, v := range rule.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// fieldEnv renders a fixed selection of a diff subset value's fields as
// prefix+FIELD_NAME=value pairs; fields not listed in its cases (for
// example ForceIOFailures, Client, Backing, Congested) are not exported.
func fieldEnv(prefix string, subset any) []string {
	switch s := subset.(type) {
	case diff.ResourceRoleSubset:
		return []string{
			prefix + "ROLE=" + s.Role.String(),
			prefix + fmt.Sprintf("MAY_PROMOTE=%t", s.MayPromote),
			prefix + fmt.Sprintf("PROMOTION_SCORE=%d", s.PromotionScore),
			prefix + fmt.Sprintf("SUSPENDED=%t", s.Suspended),
		}
	case diff.DeviceSubset:
		return []string{
			prefix + "DISK=" + s.Disk.String(),
			prefix + fmt.Sprintf("QUORUM=%t", s.Quorum),
			prefix + fmt.Sprintf("OPEN=%t", s.Open),
		}
	case diff.PeerDeviceSubset:
		return []string{
			prefix + "PEER_DISK=" + s.PeerDisk.String(),
			prefix + "REPLICATION=" + s.Replication.String(),
		}
	case diff.ConnectionSubset:
		return []string{
			prefix + "CONN_STATE=" + s.State.String(),
			prefix + "PEER_ROLE=" + s.PeerRole.String(),
		}
	default:
		return nil
	}
}
