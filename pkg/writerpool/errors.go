package writerpool

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy of spec.md §7. Use errors.Is to test
// for these; ReasonError wraps them with the diagnostic reason string
// every pool error carries (spec.md §9, "every error includes a short
// diagnostic string").
var (
	// ErrPoolClosed is returned when the pool is shutting down or has
	// shut down. Non-retryable for the lifetime of the process.
	ErrPoolClosed = errors.New("writerpool: pool closed")
	// ErrEntryUnavailable is returned when another owner holds the entry.
	// Retryable after back-off.
	ErrEntryUnavailable = errors.New("writerpool: entry unavailable")
	// ErrEntryLocked is returned when the calling owner observes its own
	// entry administratively locked (a reentrant lock, or stale state).
	ErrEntryLocked = errors.New("writerpool: entry locked")
	// ErrNotLocked is returned from Unlock when the entry is not
	// administratively locked.
	ErrNotLocked = errors.New("writerpool: entry not locked")
	// ErrNotLockOwner is returned from Unlock when the calling owner did
	// not take the administrative lock.
	ErrNotLockOwner = errors.New("writerpool: caller is not the lock owner")
)

const (
	// ReasonNone is the reason recorded when an entry is unowned.
	ReasonNone = ""
	// ReasonUnknown substitutes for a reason observed mid-acquisition, per
	// the reinterpretation rule of spec.md §4.1.
	ReasonUnknown = "unknown"
	// ReasonReleased is the reason recorded transiently at release.
	ReasonReleased = "released"
	// reasonMissingOrOwnedElsewhere is recorded when an administrative
	// lock attempt fails to open the on-disk lock file.
	reasonMissingOrOwnedElsewhere = "missing or owned by other process"
	// reasonCreateFailed is recorded on an entry whose writer failed to
	// open, so a racing caller that observes the entry before it is
	// purged still learns why (spec.md §4.1, OWNERSHIP_REASON_WRITER_ERROR
	// in the original).
	reasonCreateFailed = "writer failed to open"
)

// ReasonError pairs a sentinel error with the diagnostic reason string the
// current (or most recent) holder recorded, so a refused caller always
// learns why (spec.md §4.1, P9).
type ReasonError struct {
	Err    error
	Table  string
	Reason string
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("%s: table %q: %s", e.Err, e.Table, e.Reason)
}

func (e *ReasonError) Unwrap() error {
	return e.Err
}

func newReasonError(err error, table, reason string) *ReasonError {
	return &ReasonError{Err: err, Table: table, Reason: reason}
}
