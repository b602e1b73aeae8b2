// Package rerr defines the typed error taxonomy shared across the daemon
// (spec §7 "Error handling"). Callers distinguish failure classes with
// Of and Is, which compare the Kind values below, rather than matching
// on error strings.
package rerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the documented categories,
// independently of the wrapped message.
type Kind uint8

const (
	// Unknown is the zero value; this package never tags an error with it,
	// and Of returns it for an error that did not originate here.
	Unknown Kind = iota

	// ConfigInvalid marks a rejected configuration document or snippet.
	ConfigInvalid
	// EventMalformed marks an ingester line that failed to parse.
	EventMalformed
	// EventSourceGone marks the loss of the event-source child process
	// (crash, unexpected exit, pipe closed).
	EventSourceGone
	// ServiceManagerFailed marks a failed drop-in write or unit reload.
	ServiceManagerFailed
	// PromotionLost marks a promotion attempt that failed because a peer
	// promoted the resource first.
	PromotionLost
	// DemotionFailed marks a promoter-driven demotion that the backing
	// service manager or OCF agent refused or timed out on.
	DemotionFailed
	// PluginCrashed marks a plugin goroutine that returned or panicked
	// outside its normal stop sequence.
	PluginCrashed
	// Fatal marks a condition the daemon cannot continue past, usually
	// surfaced only at startup.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "config_invalid"
	case EventMalformed:
		return "event_malformed"
	case EventSourceGone:
		return "event_source_gone"
	case ServiceManagerFailed:
		return "service_manager_failed"
	case PromotionLost:
		return "promotion_lost"
	case DemotionFailed:
		return "demotion_failed"
	case PluginCrashed:
		return "plugin_crashed"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// taggedError attaches a Kind to a wrapped error without discarding it;
// errors.Unwrap still reaches the original cause.
type taggedError struct {
	kind Kind
	msg  string
	err  error
}

func (e *taggedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *taggedError) Unwrap() error { return e.err }

// Kind returns the Kind this error was tagged with.
func (e *taggedError) Kind() Kind { return e.kind }

// New builds a Kind-tagged error with no wrapped cause.
func New(kind Kind, msg string) error {
	return &taggedError{kind: kind, msg: msg}
}

// Wrap builds a Kind-tagged error around cause, preserving it for
// errors.Unwrap/errors.As.
func Wrap(kind Kind, msg string, cause error) error {
	return &taggedError{kind: kind, msg: msg, err: cause}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting of msg.
func Wrapf(kind Kind, cause error, format string, args ...any) error {
	return &taggedError{kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}

// Of reports the Kind tagged onto err, walking its Unwrap chain. Returns
// (Unknown, false) if no *taggedError is found anywhere in the chain.
func Of(err error) (Kind, bool) {
	var te *taggedError
	if errors.As(err, &te) {
		return te.kind, true
	}
	return Unknown, false
}

// Is reports whether err (or anything it wraps) carries kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
