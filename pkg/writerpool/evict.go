package writerpool

import "math"

// releaseAllDeadline, passed to ReleaseAll, asks for a full shutdown pass:
// every idle writer is closed regardless of its TTL, and administrative
// locks are released too.
const releaseAllDeadline = int64(math.MaxInt64)

// ReleaseAll sweeps the pool for entries eligible for reclamation and
// reports whether it removed anything (spec.md §4.5). deadline is compared
// against each entry's last-release timestamp: pass p.now()-ttl for an
// ordinary idle sweep, or releaseAllDeadline for a full shutdown pass.
//
// Three kinds of entry are reclaimed:
//   - idle entries whose last release predates deadline, closed under the
//     eviction sentinel so a concurrent acquirer does not race the
//     teardown: GetOrPublishCommand spins until the sweep is done, while a
//     plain Get does not wait and returns ErrEntryUnavailable;
//   - administratively locked entries, but only on a full shutdown pass,
//     since locks are meant to persist across ordinary idle sweeps;
//   - entries left over from a writer that failed to open, which carry no
//     writer to close and would otherwise wait forever for a retry that
//     already happened (or never will).
func (p *Pool) ReleaseAll(deadline int64) bool {
	removed := false
	evictor := int64(0)

	p.entries.Range(func(key, value any) bool {
		name := key.(string)
		e := value.(*entry)

		switch {
		case deadline > e.getLastRelease() && e.owner.Load() == Unallocated:
			if e.owner.CompareAndSwap(Unallocated, evictionSentinel(evictor)) {
				p.closeWriterPhysically(e, EventExpire, "IDLE")
				p.removeEntry(name, e)
				if p.metrics != nil {
					p.metrics.ObserveEviction("idle")
				}
				removed = true
			}

		case e.getLockFd() != -1 && deadline == releaseAllDeadline:
			if p.fs.Close(e.getLockFd()) {
				e.setLockFd(-1)
				p.removeEntry(name, e)
				if p.metrics != nil {
					p.metrics.ObserveEviction("shutdown_lock")
				}
				removed = true
			}

		case e.getCreationError() != nil:
			p.removeEntry(name, e)
			if p.metrics != nil {
				p.metrics.ObserveEviction("failed_create")
			}
			removed = true
		}
		return true
	})

	return removed
}

// Close idempotently shuts the pool down: it marks the pool closed, then
// repeatedly sweeps for reclaimable entries until a pass removes nothing,
// and emits the pool-closed event (spec.md §4.6). Writers held by
// callers outside the pool at the time of Close are not waited for; they
// close themselves normally when their owner releases them, following the
// out-of-pool path in onWriterClose.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	for p.ReleaseAll(releaseAllDeadline) {
	}
	p.notify(EventPoolClosed, Unallocated, "", "", nil)

	p.closeErrMu.Lock()
	err := p.closeErr.ErrorOrNil()
	p.closeErrMu.Unlock()
	return err
}
