package ingest

import (
	"strconv"

	"github.com/drbd-reactor-go/reactor/internal/model"
)

// keyString returns the raw value for key, or nil if absent.
func keyString(keys map[string]string, key string) *string {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	return &v
}

// keyBool parses a yes/no/true/false key (spec §4.1 "Boolean-valued keys
// accept yes/no/true/false"). An unrecognized value is treated as absent
// rather than failing the line.
func keyBool(keys map[string]string, key string) *bool {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	switch v {
	case "yes", "true":
		b := true
		return &b
	case "no", "false":
		b := false
		return &b
	default:
		return nil
	}
}

func keyUint32(keys map[string]string, key string) *uint32 {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return nil
	}
	u := uint32(n)
	return &u
}

func keyUint64(keys map[string]string, key string) *uint64 {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func keyInt64(keys map[string]string, key string) *int64 {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func keyRole(keys map[string]string, key string) *model.Role {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	r, ok := model.ParseRole(v)
	if !ok {
		return nil
	}
	return &r
}

func keyDiskState(keys map[string]string, key string) *model.DiskState {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	d, ok := model.ParseDiskState(v)
	if !ok {
		return nil
	}
	return &d
}

func keyConnState(keys map[string]string, key string) *model.ConnState {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	c, ok := model.ParseConnState(v)
	if !ok {
		return nil
	}
	return &c
}

func keyReplState(keys map[string]string, key string) *model.ReplState {
	v, ok := keys[key]
	if !ok {
		return nil
	}
	r, ok := model.ParseReplState(v)
	if !ok {
		return nil
	}
	return &r
}
