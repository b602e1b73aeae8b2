package promoter

import (
	"time"

	"github.com/drbd-reactor-go/reactor/internal/model"
)

// diskStateWeight maps a local disk state to its contribution toward
// sleep-before-promote, in seconds (spec §4.4): non-UpToDate-adjacent
// states that might still resolve to a better disk shortly favor
// waiting longer before this node claims promotion.
func diskStateWeight(d model.DiskState) time.Duration {
	switch d {
	case model.DiskUpToDate:
		return 0
	case model.DiskConsistent:
		return 1 * time.Second
	case model.DiskOutdated:
		return 2 * time.Second
	case model.DiskInconsistent:
		return 3 * time.Second
	default:
		// Diskless, Attaching, Detaching, Failed, Negotiating, Unknown
		return 6 * time.Second
	}
}

// DiskPenalty returns the maximum diskStateWeight across devices, the
// worst local disk dominating the wait (spec §4.4 "max over local
// devices").
func DiskPenalty(devices []model.DiskState) time.Duration {
	var max time.Duration
	for _, d := range devices {
		if w := diskStateWeight(d); w > max {
			max = w
		}
	}
	return max
}

// SleepBeforePromote combines the disk-state penalty, the configured
// factor, and the node-preference penalty into the final
// sleep-before-promote duration (spec §4.4).
func SleepBeforePromote(devices []model.DiskState, factor float64, preferredNodes []string, hostname string) time.Duration {
	disk := time.Duration(float64(DiskPenalty(devices)) * factor)
	return disk + NodePenalty(preferredNodes, hostname)
}
