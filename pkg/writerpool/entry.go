package writerpool

import (
	"sync"
	"sync/atomic"

	"writerpool/internal/arch"
	"writerpool/internal/tablewriter"
)

// Unallocated is the sentinel owner value meaning "idle, first CAS wins"
// (spec.md §3, Glossary).
const Unallocated int64 = -1

// evictionSentinel returns the negative ownership value the eviction job
// installs while tearing an entry down, for an eviction pass identifying
// itself as owner. It is disjoint from both Unallocated (-1) and every
// non-negative real owner id by construction: for any owner >= 0,
// -(owner+2) <= -2.
func evictionSentinel(owner int64) int64 {
	return -(owner + 2)
}

// isEvictionSentinel reports whether v is a negative eviction sentinel
// rather than Unallocated or a real owner id.
func isEvictionSentinel(v int64) bool {
	return v <= -2
}

// entry is the per-table state record of spec.md §3. ownership of writer,
// lockFd, and the reason string is gated by the owner CAS word: only the
// goroutine that currently holds owner (or is running an eviction pass
// under the eviction sentinel) may read or write them, and every handoff
// between holders goes through a release-ordered store of owner observed
// by an acquire-ordered CAS, so ordinary field writes made before the
// release are visible after the acquire (spec.md §5).
type entry struct {
	name string

	owner arch.AtomicInt // Unallocated, a real owner id, or an eviction sentinel

	mu          sync.Mutex // serializes ordinary-field access within a single holder
	writer      tablewriter.Writer
	reason      string
	lastRelease int64 // microseconds, per the pool's clock
	ex          *tablewriter.CreationError
	lockFd      int // -1 unless administratively locked

	pool *Pool
}

func newEntry(pool *Pool, name string, owner int64, now int64) *entry {
	e := &entry{
		name:        name,
		lastRelease: now,
		lockFd:      -1,
		pool:        pool,
	}
	e.owner.Store(owner)
	return e
}

// reasonOrUnknown implements the reason-reinterpretation rule of spec.md
// §4.1: because recording the reason and winning the owner CAS aren't
// atomic, a caller observing a busy entry may see an empty reason. Callers
// must never be told "busy" with a null reason, so this substitutes the
// synthetic "unknown" reason in that race window.
func (e *entry) reasonOrUnknown() string {
	e.mu.Lock()
	r := e.reason
	e.mu.Unlock()
	if r == "" {
		return ReasonUnknown
	}
	return r
}

func (e *entry) setReason(reason string) {
	e.mu.Lock()
	e.reason = reason
	e.mu.Unlock()
}

func (e *entry) clearReason() {
	e.setReason("")
}

func (e *entry) getWriter() tablewriter.Writer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writer
}

func (e *entry) setWriter(w tablewriter.Writer) {
	e.mu.Lock()
	e.writer = w
	e.mu.Unlock()
}

func (e *entry) getLockFd() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lockFd
}

func (e *entry) setLockFd(fd int) {
	e.mu.Lock()
	e.lockFd = fd
	e.mu.Unlock()
}

func (e *entry) getCreationError() *tablewriter.CreationError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ex
}

func (e *entry) setCreationError(err *tablewriter.CreationError) {
	e.mu.Lock()
	e.ex = err
	e.mu.Unlock()
}

func (e *entry) getLastRelease() int64 {
	return atomic.LoadInt64(&e.lastRelease)
}

func (e *entry) setLastRelease(t int64) {
	atomic.StoreInt64(&e.lastRelease, t)
}

// OnClose implements tablewriter.LifecycleManager: when the writer's
// natural Close() call reaches this entry, returning true would tell the
// writer to tear itself down; returning false (the normal case) keeps the
// writer cached in the pool. This is how a writer's own close() routes
// back into the pool instead of destroying state (spec.md §6.1, §4.2).
func (e *entry) OnClose() bool {
	return !e.pool.onWriterClose(e)
}
