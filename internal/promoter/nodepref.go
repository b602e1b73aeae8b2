package promoter

import "time"

// NodePenalty biases promotion toward the front of preferred-nodes: a
// node at list index i waits i*2 seconds; a node absent from the list
// waits (len(preferred-nodes)+1)*2 seconds, longer than any listed node
// (spec §4.4, scenario 4: preferred-nodes=["alpha","beta"] gives beta a
// 2s penalty and an unlisted gamma a 6s penalty).
func NodePenalty(preferredNodes []string, hostname string) time.Duration {
	for i, n := range preferredNodes {
		if n == hostname {
			return time.Duration(i*2) * time.Second
		}
	}
	return time.Duration((len(preferredNodes)+1)*2) * time.Second
}
