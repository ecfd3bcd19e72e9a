package writerpool

import (
	"runtime"
	"time"

	"writerpool/internal/tablewriter"
)

// Command is a unit of work a caller wants applied to a table's writer
// without itself becoming the owner (spec.md §4.4, GetOrPublishCommand).
type Command func()

// Get returns the cached writer for name, opening it if the pool holds no
// writer for name, or refusing callers who lose the ownership race with
// ErrEntryUnavailable (spec.md §4.1). owner identifies
// the calling goroutine's logical identity — Go has no ambient thread id,
// so the pool takes it explicitly rather than reading a runtime thread
// handle the way the source VM does.
func (p *Pool) Get(owner int64, name, reason string) (tablewriter.Writer, error) {
	start := p.now()
	w, err := p.acquire(owner, name, reason, nil)
	p.observeAcquire(err, start)
	return w, err
}

// GetOrPublishCommand returns the cached writer for name if it is free, or,
// if another owner already holds it, publishes cmd onto that writer's own
// command queue and returns (nil, nil) — the caller never becomes the
// owner (spec.md §4.4). It retries internally past transient contention
// (the entry mid-eviction, or a fresh entry racing another creator) the
// same way the source polls past EntryUnavailable when a write action is
// supplied.
func (p *Pool) GetOrPublishCommand(owner int64, name, reason string, cmd Command) (tablewriter.Writer, error) {
	start := p.now()
	for {
		w, err := p.acquire(owner, name, reason, cmd)
		if err == errRetry {
			runtime.Gosched()
			continue
		}
		p.observeAcquire(err, start)
		return w, err
	}
}

// errRetry is a private sentinel meaning "the caller-visible acquire loop
// should spin again"; it never escapes acquire or GetOrPublishCommand.
var errRetry = newReasonError(ErrEntryUnavailable, "", "retry")

func (p *Pool) observeAcquire(err error, startMicros int64) {
	if p.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.ObserveAcquire(outcome, time.Duration(p.now()-startMicros)*time.Microsecond)
}

// acquire is the CAS ladder of spec.md §4.1, mirroring the source's
// getWriterEntry: find-or-insert the entry, race to become its owner, and
// on loss either publish cmd (if provided) or report back the current
// holder's reason.
func (p *Pool) acquire(owner int64, name, reason string, cmd Command) (tablewriter.Writer, error) {
	if !p.isOpen() {
		return nil, ErrPoolClosed
	}

	e, inserted := p.loadOrCreateEntry(name, owner)
	if inserted {
		return p.createWriter(name, e, owner, reason)
	}

	if e.owner.CompareAndSwap(Unallocated, owner) {
		if e.getWriter() == nil {
			if ce := e.getCreationError(); ce != nil {
				// A previous creation attempt (by this owner or another)
				// left a poisoned entry behind: resend the same failure
				// and drop the entry so the next caller gets a clean
				// retry (spec.md P6) instead of repeating a doomed
				// construction indefinitely.
				p.notify(EventExResend, owner, name, "", ce)
				p.removeEntry(name, e)
				return nil, ce
			}
			// Extreme race: the entry exists but was never populated (its
			// creator hasn't stored a writer yet, or was evicted out from
			// under us). Behave as if we'd found no entry at all.
			return p.createWriter(name, e, owner, reason)
		}
		return p.claim(name, e, owner, reason)
	}

	current := e.owner.Load()
	if isEvictionSentinel(current) {
		// An eviction pass is mid-teardown. It will finish shortly; ask
		// the caller (GetOrPublishCommand) to spin, or a plain Get to
		// treat this as ordinary contention.
		if cmd != nil {
			return nil, errRetry
		}
		return nil, newReasonError(ErrEntryUnavailable, name, ReasonUnknown)
	}

	if current == owner {
		if e.getLockFd() != -1 {
			return nil, newReasonError(ErrEntryLocked, name, e.reasonOrUnknown())
		}
		if ce := e.getCreationError(); ce != nil {
			// This same caller already failed to create this writer.
			// Resend the same error and drop the poisoned entry so the
			// next caller gets a clean retry.
			p.notify(EventExResend, owner, name, "", ce)
			p.removeEntry(name, e)
			return nil, ce
		}
	}

	if cmd != nil {
		return nil, p.publish(e, name, reason, cmd)
	}

	p.notify(EventLockBusy, current, name, "", nil)
	return nil, newReasonError(ErrEntryUnavailable, name, e.reasonOrUnknown())
}

// publish delivers cmd to the table's own writer without taking ownership
// of the entry (spec.md §4.4). reason labels the durable command record
// the writer appends to its commit log before running cmd.
func (p *Pool) publish(e *entry, name, reason string, cmd Command) error {
	w := e.getWriter()
	for w == nil && e.owner.Load() != Unallocated {
		runtime.Gosched()
		w = e.getWriter()
	}
	if w == nil {
		// The writer was evicted from under us; the caller's retry loop
		// (GetOrPublishCommand) starts the whole lookup over.
		return errRetry
	}
	return w.ProcessCommandAsync(reason, func() { cmd() })
}

// createWriter opens a brand-new writer for a just-inserted entry
// (spec.md §4.1 step 3a).
func (p *Pool) createWriter(name string, e *entry, owner int64, reason string) (tablewriter.Writer, error) {
	if !p.isOpen() {
		return nil, ErrPoolClosed
	}

	w, err := p.newWriter(name, false)
	if err != nil {
		ce, ok := err.(*tablewriter.CreationError)
		if !ok {
			ce = &tablewriter.CreationError{Table: name, Err: err}
		}
		e.setCreationError(ce)
		e.setReason(reasonCreateFailed)
		e.owner.Store(Unallocated)
		p.metrics.ObserveCreateError()
		p.notify(EventCreateError, owner, name, "", ce)
		return nil, ce
	}

	w.SetLifecycleManager(e)
	e.setWriter(w)
	e.setReason(reason)
	p.metrics.ObserveCreate()
	return p.finishAcquire(e, name, owner, EventCreate)
}

// claim finishes an acquisition of an already-open, previously idle entry.
func (p *Pool) claim(name string, e *entry, owner int64, reason string) (tablewriter.Writer, error) {
	if !p.isOpen() {
		// The pool closed while we were racing for this entry; hand the
		// writer back to the caller uncached so their own Close() call
		// tears it down normally instead of returning to a dead pool. The
		// writer is still wired to this entry's OnClose, so it must be
		// repointed at the always-teardown manager first — otherwise the
		// caller's eventual Close() would route back into onWriterClose
		// against an entry whose writer field is already nil.
		w := e.getWriter()
		w.SetLifecycleManager(tablewriter.DefaultLifecycleManager)
		e.setWriter(nil)
		return w, nil
	}
	e.setReason(reason)
	return p.finishAcquire(e, name, owner, EventGet)
}

func (p *Pool) finishAcquire(e *entry, name string, owner int64, kind EventKind) (tablewriter.Writer, error) {
	p.notify(kind, owner, name, "", nil)
	return e.getWriter(), nil
}
