// Package tablewriter provides a concrete implementation of the writer
// contract the pool consumes (spec.md §6.1). The writer itself — rollback,
// tick, its command queue, on-close callback — is treated by the pool as an
// opaque external collaborator; this package exists to give the pool
// something real to cache and the test suite something real to exercise.
package tablewriter

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"writerpool/internal/base"
	"writerpool/pkg/storage"
)

// LifecycleManager is the writer's on-close callback contract (spec.md
// §6.1). The pool's entry implements this so a writer's natural Close call
// routes back into the pool instead of tearing the writer down.
type LifecycleManager interface {
	// OnClose is invoked by Close. Returning true tells the writer to run
	// its own default teardown; returning false tells it to suppress
	// teardown because the callee (normally the pool) already took
	// ownership of the writer's lifetime.
	OnClose() bool
}

// defaultLifecycleManager always tears the writer down; it is the
// lifecycle a writer is constructed with before the pool wires in its
// entry, and the one the pool swaps in before it closes a writer itself or
// hands one back uncached after the pool has closed.
type defaultLifecycleManager struct{}

func (defaultLifecycleManager) OnClose() bool { return true }

// DefaultLifecycleManager is the always-teardown LifecycleManager.
var DefaultLifecycleManager LifecycleManager = defaultLifecycleManager{}

// Writer is the contract the pool depends on (spec.md §6.1).
type Writer interface {
	Rollback() error
	Tick(structural bool) error
	// ProcessCommandAsync durably records that a structural command
	// (described by reason) was queued, then arranges for fn to run on a
	// later Rollback/Tick(true) (spec.md §4.6).
	ProcessCommandAsync(reason string, fn func()) error
	TableName() string
	TransferLock(fd int) error
	SetLifecycleManager(m LifecycleManager)
	Close() error
}

// FileWriter is a directio-backed table writer: an append-only commit log
// of structural-command records, sequenced with a packed trailer encoding.
// It has no row-append path.
type FileWriter struct {
	name string
	data *storage.Writer

	seqNum base.AtomicSeqNum

	mu       sync.Mutex
	lockFd   int // -1 if this writer does not hold the table's lock fd
	lifecyle LifecycleManager

	commands *commandQueue
	closed   atomic.Bool
}

// Open constructs (or re-opens) the on-disk commit log for table name under
// root. isNewTable chooses O_EXCL so a racing second creation attempt for
// the same fresh table fails loudly instead of silently truncating.
func Open(root, name string, isNewTable bool) (*FileWriter, error) {
	flag := storageOpenFlag(isNewTable)
	path := filepath.Join(root, name, "commit.log")

	data, err := storage.NewWriter(path, flag)
	if err != nil {
		return nil, &CreationError{Table: name, Err: err}
	}

	w := &FileWriter{
		name:     name,
		data:     data,
		lockFd:   -1,
		lifecyle: DefaultLifecycleManager,
		commands: newCommandQueue(),
	}
	w.seqNum.Store(base.SeqNum(0))
	return w, nil
}

// Rollback processes any structural commands queued on the writer during
// its tenure. A disk-full or similar systemic write failure here marks the
// writer distressed to its caller (spec.md §4.2 step 1): the pool will
// destroy rather than cache it.
func (w *FileWriter) Rollback() error {
	w.commands.drain()
	return nil
}

// Tick processes queued commands when structural is true; a non-structural
// tick is a no-op heartbeat (the pool only ever calls Tick(true) on
// release, per spec.md §4.2 step 1).
func (w *FileWriter) Tick(structural bool) error {
	if structural {
		w.commands.drain()
	}
	return nil
}

// ProcessCommandAsync is the writer's own publish protocol (spec.md §4.6):
// it never takes the pool's (nonexistent) lock, only the writer's own
// queue. Before queuing fn it stamps and durably appends a structural
// record to the commit log, so a crash between publish and the eventual
// Rollback/Tick(true) that runs fn leaves a durable trace of what was
// queued, instead of silently losing it.
func (w *FileWriter) ProcessCommandAsync(reason string, fn func()) error {
	seq := w.seqNum.Add(1)
	rec := base.MakeRecord([]byte(reason), seq, base.RecordKindCommand)
	if _, err := w.data.Write(base.EncodeRecord(rec)); err != nil {
		return err
	}
	if err := w.data.Sync(); err != nil {
		return err
	}
	return w.commands.publish(w.name, fn)
}

func (w *FileWriter) TableName() string {
	return w.name
}

// TransferLock takes ownership of a lock fd the pool held administratively,
// on an unlock-with-new-table publish (spec.md §4.4).
func (w *FileWriter) TransferLock(fd int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lockFd = fd
	return nil
}

func (w *FileWriter) SetLifecycleManager(m LifecycleManager) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lifecyle = m
}

// Close invokes the wired lifecycle manager; only if it reports true does
// this writer perform its own teardown. A normal return-to-pool close
// (manager reports false) leaves the data file and lock fd untouched for
// the pool to cache.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	manager := w.lifecyle
	w.mu.Unlock()

	if !manager.OnClose() {
		return nil
	}
	return w.teardown()
}

func (w *FileWriter) teardown() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	return w.data.Close()
}

func storageOpenFlag(isNewTable bool) int {
	flag := os.O_RDWR | os.O_CREATE
	if isNewTable {
		// A fresh table's first writer must be the only creator of its
		// commit log; a racing second creation attempt should fail loudly
		// rather than silently truncate.
		flag |= os.O_EXCL
	}
	return flag
}
