package tablewriter

import (
	"errors"
	"fmt"
	"syscall"
)

// CreationError wraps a failure to construct a table writer, carrying the
// syscall errno where one is available. This replaces the original's
// flyweight (reused, non-allocating) error message buffer — spec.md §6.1,
// §7 — with a normally-allocated, %w-wrapped error: in a garbage-collected
// runtime, avoiding one allocation on the (expected-to-be-rare) creation
// failure path buys nothing and costs the ability to errors.Is/As cleanly.
type CreationError struct {
	Table string
	Err   error
}

func (e *CreationError) Error() string {
	if errno, ok := errnoOf(e.Err); ok {
		return fmt.Sprintf("tablewriter: open %q: %s (errno=%d)", e.Table, e.Err, errno)
	}
	return fmt.Sprintf("tablewriter: open %q: %s", e.Table, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

func errnoOf(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
