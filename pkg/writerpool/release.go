package writerpool

import (
	"fmt"

	"writerpool/internal/tablewriter"
)

// onWriterClose implements the return-to-pool algorithm of spec.md §4.2.
// It is invoked by entry.OnClose, itself invoked by the cached writer's
// own Close() method — the writer's natural close path routing back into
// the pool instead of tearing itself down (spec.md §6.1, §2 item 3).
//
// It reports whether the writer's lifetime was already settled by this
// call (true: either cached for reuse, or physically destroyed via a
// nested closeWriterPhysically call below) — in which case the ORIGINAL caller-level
// Close() must suppress its own default teardown — or whether it was not
// (false), in which case the caller-level Close() must go ahead and
// perform its own default teardown.
func (p *Pool) onWriterClose(e *entry) bool {
	w := e.getWriter()
	if err := w.Rollback(); err != nil {
		return p.distress(e)
	}
	// Structural commands (e.g. ALTER TABLE) published while this writer
	// was held are applied now, before it goes back in the pool.
	if err := w.Tick(true); err != nil {
		return p.distress(e)
	}

	owner := e.owner.Load()
	if owner == Unallocated {
		// Double-close: the entry was already idle. A programming error
		// on the caller's part, not a pool failure.
		p.notify(EventUnexpectedClose, owner, e.name, "", nil)
		return true
	}

	e.clearReason()
	e.setLastRelease(p.now())
	// Release fence: the reason/lastRelease writes above, and the writer
	// field state, must be visible to whichever goroutine next observes
	// owner == Unallocated via an acquiring CAS (spec.md §5).
	e.owner.Store(Unallocated)

	if !p.isOpen() {
		// The pool closed concurrently with this release. Try to grab the
		// entry back before declaring it a free agent; if we win, the
		// writer is now orphaned from the pool's bookkeeping and the
		// caller-level Close() must perform the real teardown itself.
		if e.owner.CompareAndSwap(Unallocated, owner) {
			e.setWriter(nil)
			p.notify(EventOutOfPoolClose, owner, e.name, "", nil)
			return false
		}
	}

	p.notify(EventReturn, owner, e.name, "", nil)
	return true
}

// distress handles a writer whose rollback/tick failed on return — a
// systemic failure (e.g. disk full) that means the cached state can no
// longer be trusted. The entry is removed and the writer is physically
// destroyed rather than cached (spec.md §4.2 step 1, Glossary:
// "Distressed").
func (p *Pool) distress(e *entry) bool {
	p.removeEntry(e.name, e)
	p.closeWriterPhysically(e, EventLockClose, "DISTRESSED")
	return true
}

// closeWriterPhysically swaps the entry's writer over to the always-teardown
// lifecycle manager and closes it for real. Used by the distressed-return
// path, the administrative lock path (closing a cached writer before the
// disk lock is taken), and eviction (closing an idle writer past its TTL).
// A close failure is recorded on the pool (surfaced by Close, following the
// teacher's pattern of aggregating independent close failures, pkg/db.Close)
// rather than returned here, since every caller of closeWriterPhysically is
// itself deep in a best-effort teardown path with nothing useful to do with
// an individual error.
func (p *Pool) closeWriterPhysically(e *entry, kind EventKind, reason string) {
	w := e.getWriter()
	if w == nil {
		return
	}
	name := w.TableName()
	w.SetLifecycleManager(tablewriter.DefaultLifecycleManager)
	if err := w.Close(); err != nil {
		p.recordCloseErr(fmt.Errorf("writerpool: close %q: %w", name, err))
	}
	e.setWriter(nil)
	e.setReason(ReasonReleased)
	p.notify(kind, e.owner.Load(), name, reason, nil)
}
