// Package ingest implements the event-stream ingester (spec §4.1): it
// spawns the external event-producing utility, parses its line-oriented
// protocol, applies mutations to the model, and emits PluginUpdate
// records through the change-derivation engine (package diff).
package ingest

import (
	"fmt"
	"strings"

	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/rerr"
)

// ObjectType is the wire object-type token (spec §4.1).
type ObjectType uint8

const (
	ObjectUnknown ObjectType = iota
	ObjectResource
	ObjectDevice
	ObjectConnection
	ObjectPeerDevice
	ObjectPath
	ObjectHelper
	// ObjectSentinel marks the end of the initial "exists" snapshot the
	// event source emits on attach (spec §4.1).
	ObjectSentinel
)

func parseObjectType(s string) (ObjectType, bool) {
	switch s {
	case "resource":
		return ObjectResource, true
	case "device":
		return ObjectDevice, true
	case "connection":
		return ObjectConnection, true
	case "peer-device":
		return ObjectPeerDevice, true
	case "path":
		return ObjectPath, true
	case "helper":
		return ObjectHelper, true
	case "exists-done":
		return ObjectSentinel, true
	default:
		return ObjectUnknown, false
	}
}

func parseEventType(s string) (diff.EventType, bool) {
	switch s {
	case "exists":
		return diff.EventExists, true
	case "create":
		return diff.EventCreate, true
	case "change":
		return diff.EventChange, true
	case "destroy":
		return diff.EventDestroy, true
	default:
		return diff.EventChange, false
	}
}

// ParsedLine is one tokenized event line.
type ParsedLine struct {
	Event  diff.EventType
	Object ObjectType
	Keys   map[string]string
}

// Parse tokenizes one event line into event-type, object-type, and a
// key:value map (spec §4.1 "Parser contract"). Unknown keys are kept in
// the map rather than dropped here, so the parser needs no schema per
// object type; Apply reads the keys it recognizes and ignores the rest
// without logging them.
func Parse(line string) (ParsedLine, error) {
	fields, err := tokenize(line)
	if err != nil {
		return ParsedLine{}, rerr.Wrap(rerr.EventMalformed, "tokenize event line", err)
	}
	if len(fields) < 2 {
		return ParsedLine{}, rerr.New(rerr.EventMalformed, "event line missing event-type/object-type")
	}

	evt, ok := parseEventType(fields[0])
	if !ok {
		return ParsedLine{}, rerr.New(rerr.EventMalformed, fmt.Sprintf("unrecognized event-type %q", fields[0]))
	}
	obj, ok := parseObjectType(fields[1])
	if !ok {
		return ParsedLine{}, rerr.New(rerr.EventMalformed, fmt.Sprintf("unrecognized object-type %q", fields[1]))
	}

	keys := make(map[string]string, len(fields)-2)
	for _, kv := range fields[2:] {
		idx := strings.IndexByte(kv, ':')
		if idx < 0 {
			return ParsedLine{}, rerr.New(rerr.EventMalformed, fmt.Sprintf("malformed key:value token %q", kv))
		}
		key := kv[:idx]
		val := kv[idx+1:]
		keys[key] = val
	}

	return ParsedLine{Event: evt, Object: obj, Keys: keys}, nil
}

// tokenize splits a line on whitespace, honoring double-quoted values so
// that a key:"value with spaces" token survives as one field (spec §4.1
// "values may be quoted").
func tokenize(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	haveToken := false

	flush := func() {
		if haveToken {
			fields = append(fields, cur.String())
			cur.Reset()
			haveToken = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			haveToken = true
		case c == ' ' || c == '\t':
			if inQuotes {
				cur.WriteByte(c)
			} else {
				flush()
			}
		default:
			cur.WriteByte(c)
			haveToken = true
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return fields, nil
}
