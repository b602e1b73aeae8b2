// Package model — stats.go
//
// Counter monotonicity and the statistics-reset heuristic (spec §4.1,
// §8 "Counter monotonicity"). Cumulative counters are expected to only
// ever increase between merges. When a merge observes a value lower than
// what is currently stored, the heuristic re-baselines the stored value
// to the new (lower) observation rather than refusing the update or
// synthesizing a negative delta — the counter's source (e.g. the device
// minor was re-created) has effectively reset it.
//
// The diff-derivation engine (package diff) does not surface raw counter
// values as a recognized dimension (spec §4.2 lists only state/role/flag
// fields), so no delta is ever computed from these counters for plugin
// consumption; this file only needs to detect and count resets for
// observability.

package model

import "sync/atomic"

// ResetCounters tracks how many times each cumulative-counter family has
// been re-baselined by the statistics-reset heuristic. Safe for concurrent
// reads; writes happen only from the single ingester goroutine.
type ResetCounters struct {
	DeviceReadBytes    atomic.Uint64
	DeviceWrittenBytes atomic.Uint64
	DeviceALWrites     atomic.Uint64
	DeviceBMWrites     atomic.Uint64
	PeerBytesSent      atomic.Uint64
	PeerBytesReceived  atomic.Uint64
}

// observeCounter reports whether newVal represents a reset (newVal < oldVal)
// and, if so, increments ctr. The stored value is always newVal regardless
// — callers never clamp or reject the incoming value.
func observeCounter(ctr *atomic.Uint64, oldVal, newVal uint64) (reset bool) {
	if newVal < oldVal {
		ctr.Add(1)
		return true
	}
	return false
}
