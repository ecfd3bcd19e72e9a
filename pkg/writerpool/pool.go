// Package writerpool implements the process-wide, thread-safe cache of
// table-writer handles described in spec.md: it enforces a
// single-writer-per-table invariant, amortizes the cost of opening and
// closing on-disk writer state, and mediates administrative locks, idle
// eviction, and asynchronous command delivery to busy writers.
package writerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"writerpool/internal/lockfile"
	"writerpool/internal/poolmetrics"
	"writerpool/internal/tablewriter"
)

// Clock is the monotonic microsecond time source spec.md §6.4 calls out as
// a configuration option.
type Clock interface {
	NowMicros() int64
}

// SystemClock is the default Clock, backed by the wall clock.
type SystemClock struct{}

func (SystemClock) NowMicros() int64 { return time.Now().UnixMicro() }

// WriterFactory opens (or creates) the on-disk writer for table name.
// isNewTable selects creation semantics. This is the pool's only point of
// contact with the writer's constructor (spec.md §6.1: "new(config, name,
// bus, ..., is_new_table, lifecycle_manager, root, metrics)").
type WriterFactory func(name string, isNewTable bool) (tablewriter.Writer, error)

// Pool is the process-wide writer cache of spec.md §2–§3. Construct one
// with Open and explicit options; do not use a package-level singleton
// (spec.md §9: "Do not use ambient singletons; thread the pool explicitly
// into constructors").
type Pool struct {
	entries sync.Map // string table name -> *entry

	fs      lockfile.FS
	clock   Clock
	root    string
	bus     any // opaque message bus; stored only, never inspected or passed to writers
	metrics *poolmetrics.Collector
	ttlUs   atomic.Int64

	newWriter WriterFactory

	closed   atomic.Bool
	listener Listener

	closeErrMu sync.Mutex
	closeErr   *multierror.Error
}

// Option configures a Pool at construction time, following a functional-
// option pattern (pkg/options.go, pkg/db/option.go).
type Option func(*Pool)

func WithFS(fs lockfile.FS) Option {
	return func(p *Pool) { p.fs = fs }
}

func WithClock(clock Clock) Option {
	return func(p *Pool) { p.clock = clock }
}

func WithMessageBus(bus any) Option {
	return func(p *Pool) { p.bus = bus }
}

func WithMetrics(m *poolmetrics.Collector) Option {
	return func(p *Pool) { p.metrics = m }
}

func WithListener(l Listener) Option {
	return func(p *Pool) { p.listener = l }
}

func WithInactiveWriterTTL(d time.Duration) Option {
	return func(p *Pool) { p.ttlUs.Store(d.Microseconds()) }
}

func WithWriterFactory(f WriterFactory) Option {
	return func(p *Pool) { p.newWriter = f }
}

// Open constructs a Pool rooted at root and emits the pool-open event
// (spec.md §3: "Creating the pool emits a pool-open event").
func Open(root string, opts ...Option) *Pool {
	p := &Pool{
		fs:       lockfile.NewOSFileSystem(),
		clock:    SystemClock{},
		root:     root,
		listener: noopListener{},
	}
	p.ttlUs.Store((30 * time.Minute).Microseconds())
	for _, opt := range opts {
		opt(p)
	}
	if p.newWriter == nil {
		p.newWriter = func(name string, isNewTable bool) (tablewriter.Writer, error) {
			return tablewriter.Open(p.root, name, isNewTable)
		}
	}

	p.notify(EventPoolOpen, Unallocated, "", "", nil)
	return p
}

// isOpen reports whether the pool is still accepting operations.
func (p *Pool) isOpen() bool {
	return !p.closed.Load()
}

func (p *Pool) now() int64 {
	return p.clock.NowMicros()
}

// InactiveWriterTTL returns the configured idle threshold, in microseconds
// on the pool's own clock, for the external scheduler (internal/scheduler)
// to compute ReleaseAll's ordinary-sweep deadline as now()-TTL.
func (p *Pool) InactiveWriterTTL() int64 {
	return p.ttlUs.Load()
}

// SetInactiveWriterTTL updates the idle threshold at runtime, letting a
// config loader (internal/poolconfig) push a hot-reloaded value into a pool
// that is already open, without requiring the pool to be rebuilt.
func (p *Pool) SetInactiveWriterTTL(d time.Duration) {
	p.ttlUs.Store(d.Microseconds())
}

// recordCloseErr accumulates an independent writer-teardown failure
// observed by closeWriterPhysically (a ReleaseAll pass, the lock path, or a
// distressed return), following pkg/db.(*DB).Close's
// pattern of aggregating multiple independent close failures rather than
// dropping all but the first. Drained and returned by Close.
func (p *Pool) recordCloseErr(err error) {
	p.closeErrMu.Lock()
	p.closeErr = multierror.Append(p.closeErr, err)
	p.closeErrMu.Unlock()
}

// loadOrCreateEntry finds the entry for name, or atomically inserts a
// freshly constructed one pre-owned by owner (spec.md §4.1 step 3a / §4.3
// step 2). It reports whether the caller's insert won the race.
func (p *Pool) loadOrCreateEntry(name string, owner int64) (e *entry, inserted bool) {
	candidate := newEntry(p, name, owner, p.now())
	actual, loaded := p.entries.LoadOrStore(name, candidate)
	e = actual.(*entry)
	return e, !loaded
}

func (p *Pool) removeEntry(name string, e *entry) {
	p.entries.CompareAndDelete(name, e)
}

// Size returns an approximate count of entries (spec.md §5: "approximate
// counts acceptable").
func (p *Pool) Size() int {
	n := 0
	p.entries.Range(func(_, _ any) bool { n++; return true })
	return n
}

// BusyCount returns an approximate count of entries currently held by a
// live owner.
func (p *Pool) BusyCount() int {
	n := 0
	p.entries.Range(func(_, v any) bool {
		if owner := v.(*entry).owner.Load(); owner != Unallocated && !isEvictionSentinel(owner) {
			n++
		}
		return true
	})
	return n
}

// FreeCount returns an approximate count of idle, cached entries.
func (p *Pool) FreeCount() int {
	return p.Size() - p.BusyCount()
}
