package writerpool

import (
	"writerpool/internal/tablewriter"
)

// Lock takes the administrative, cross-process lock on name (spec.md §4.3):
// it closes any cached writer, takes an advisory flock on the table's
// lock file (a sibling of its directory, see lockPath), and prevents any Get/GetOrPublishCommand from creating a new
// writer until Unlock. Locking never blocks; a busy table reports back the
// current holder's reason instead.
func (p *Pool) Lock(owner int64, name, reason string) error {
	if !p.isOpen() {
		return ErrPoolClosed
	}

	e, inserted := p.loadOrCreateEntry(name, owner)
	if inserted {
		if p.takeDiskLock(owner, e, name, reason) {
			return nil
		}
		p.removeEntry(name, e)
		return newReasonError(ErrEntryUnavailable, name, e.reasonOrUnknown())
	}

	if e.owner.CompareAndSwap(Unallocated, owner) {
		p.closeWriterPhysically(e, EventLockClose, "NAME_LOCK")
		if p.takeDiskLock(owner, e, name, reason) {
			return nil
		}
		return newReasonError(ErrEntryUnavailable, name, e.reasonOrUnknown())
	}

	p.notify(EventLockBusy, e.owner.Load(), name, "", nil)
	return newReasonError(ErrEntryUnavailable, name, e.reasonOrUnknown())
}

// takeDiskLock installs the advisory on-disk lock for an entry this
// goroutine already owns, and records the outcome on the entry itself
// (spec.md §4.3: "lock failure ... is recorded on the entry" so a losing
// racer sees a reason, not a silent gap).
func (p *Pool) takeDiskLock(owner int64, e *entry, name, reason string) bool {
	fd := p.fs.Lock(lockPath(p.root, name))
	if fd == -1 {
		e.setReason(reasonMissingOrOwnedElsewhere)
		e.owner.Store(Unallocated)
		return false
	}
	e.setLockFd(fd)
	e.setReason(reason)
	p.notify(EventLockSuccess, owner, name, "", nil)
	return true
}

// Unlock releases the administrative lock taken by Lock (spec.md §4.3).
// If w is non-nil it becomes the entry's cached writer, handing the lock
// file descriptor over to it (the create-table-then-cache-it handoff);
// otherwise the lock file and the entry itself are removed. newTable asks
// the pool to open a brand-new writer for a table whose files were just
// created under the disk lock, rather than accepting a caller-supplied w.
func (p *Pool) Unlock(owner int64, name string, w tablewriter.Writer, newTable bool) error {
	e, ok := p.entries.Load(name)
	if !ok {
		p.notify(EventNotLocked, owner, name, "", nil)
		return ErrNotLocked
	}
	ent := e.(*entry)

	if ent.owner.Load() != owner {
		p.notify(EventNotLockOwner, owner, name, "", nil)
		return ErrNotLockOwner
	}

	if ent.getWriter() != nil {
		p.notify(EventNotLocked, owner, name, "", nil)
		return ErrNotLocked
	}

	if newTable {
		created, err := p.newWriter(name, true)
		if err != nil {
			return err
		}
		w = created
	}

	if w == nil {
		fd := ent.getLockFd()
		if fd != -1 {
			p.fs.Close(fd)
			p.fs.Remove(lockPath(p.root, name))
		}
		p.removeEntry(name, ent)
		p.notify(EventUnlock, owner, name, "", nil)
		return nil
	}

	w.SetLifecycleManager(ent)
	_ = w.TransferLock(ent.getLockFd())
	ent.setLockFd(-1)
	ent.setWriter(w)
	ent.clearReason()
	ent.owner.Store(Unallocated)
	p.notify(EventUnlock, owner, name, "", nil)
	return nil
}
