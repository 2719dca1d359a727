package cortex

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy from spec §7. Core functions never throw across
// component boundaries; they return a *Fault with one of these kinds.
type Kind string

const (
	// InvalidArgument marks a malformed id or an out-of-range scalar passed
	// at an API boundary (as opposed to a value clamped internally).
	InvalidArgument Kind = "invalid_argument"
	// NotFound marks a referenced entity, session or tenant that is absent.
	NotFound Kind = "not_found"
	// ConflictingState marks an operation that contradicts existing state
	// (merging an already-merged entity, splitting a non-merged one, ...).
	ConflictingState Kind = "conflicting_state"
	// IntegrityBroken marks an audit chain verification failure. Fatal for
	// the affected tenant; it propagates to the caller.
	IntegrityBroken Kind = "integrity_broken"
	// QuotaExceeded surfaces a refusal signal from the (external) quota
	// layer so it can be logged; the core never enforces quotas itself.
	QuotaExceeded Kind = "quota_exceeded"
)

// Fault is the structured error type returned by every core API. It mirrors
// the teacher framework's FrameworkError: an operation name, a kind, an
// optional entity id, and a wrapped cause.
type Fault struct {
	Op       string
	Kind     Kind
	EntityID string
	Err      error
}

func (f *Fault) Error() string {
	switch {
	case f.Op != "" && f.EntityID != "" && f.Err != nil:
		return fmt.Sprintf("%s [%s]: %v", f.Op, f.EntityID, f.Err)
	case f.Op != "" && f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Op, f.Err)
	case f.Err != nil:
		return f.Err.Error()
	default:
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault constructs a Fault for op/kind, wrapping msg as its cause.
func NewFault(op string, kind Kind, entityID, msg string) *Fault {
	return &Fault{Op: op, Kind: kind, EntityID: entityID, Err: errors.New(msg)}
}

// WrapFault wraps an existing error under op/kind.
func WrapFault(op string, kind Kind, entityID string, err error) *Fault {
	return &Fault{Op: op, Kind: kind, EntityID: entityID, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Fault.
func KindOf(err error) (Kind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// Is reports whether err is a *Fault of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Sentinel errors used with errors.Is for the handful of conditions that
// components need to compare without constructing a full Fault.
var (
	ErrUnknownTarget    = errors.New("modulation target not found")
	ErrLoopDetected     = errors.New("goal loop detected")
	ErrAlreadyMerged    = errors.New("entity already part of a merge")
	ErrNotMerged        = errors.New("entity is not a merged entity")
	ErrQuarantined      = errors.New("entity is quarantined")
	ErrChainBroken      = errors.New("audit hash chain broken")
	ErrTierDisabled     = errors.New("feedback tier disabled by configuration")
	ErrTurnNotStarted   = errors.New("turn has not been started")
	ErrTurnAlreadyOpen  = errors.New("turn already in progress")
)
