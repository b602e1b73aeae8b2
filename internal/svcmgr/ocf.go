package svcmgr

import (
	"fmt"
	"strings"
)

// WrapperUnit names the generic OCF wrapper unit for one (vendor,
// instance-id) pair (spec §4.4 "parameterized by the tuple
// (instance-id_<resource>)"); resource scoping is folded into
// instanceID by the caller before this is invoked.
func WrapperUnit(vendor, instanceID string) string {
	return fmt.Sprintf("drbd-reactor-ocf-%s-%s.service", vendor, instanceID)
}

// ParseOCFEntry splits a start-list entry of the form
// "ocf:<vendor>:<agent> <instance-id> k=v …" into its parts and the
// OCF_RESKEY_ environment this daemon must export to the wrapper.
func ParseOCFEntry(entry, resourceName string) (vendor, agent, instanceID string, env map[string]string, ok bool) {
	fields := strings.Fields(entry)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "ocf:") {
		return "", "", "", nil, false
	}
	parts := strings.SplitN(strings.TrimPrefix(fields[0], "ocf:"), ":", 2)
	if len(parts) != 2 {
		return "", "", "", nil, false
	}
	vendor, agent = parts[0], parts[1]
	instanceID = fmt.Sprintf("%s_%s", fields[1], resourceName)

	env = make(map[string]string)
	for _, kv := range fields[2:] {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		env["OCF_RESKEY_"+kv[:eq]] = kv[eq+1:]
	}
	return vendor, agent, instanceID, env, true
}
