package writerpool

import (
	"sync"

	"writerpool/internal/tablewriter"
)

// fakeWriter is an in-memory tablewriter.Writer double. Real writers are
// directio-backed and unreliable to open in a sandboxed test environment
// (O_DIRECT commonly fails on overlay/tmpfs filesystems), so the pool's
// own behavior is exercised against this double instead, mirroring the
// teacher's own preference for small in-package fakes over exercising
// real I/O in unit tests.
type fakeWriter struct {
	mu       sync.Mutex
	name     string
	manager  tablewriter.LifecycleManager
	lockFd   int
	closed   bool
	closeErr error
	rollback func() error
	tick     func(bool) error

	commandsMu sync.Mutex
	commands   []func()
}

func newFakeWriter(name string) *fakeWriter {
	return &fakeWriter{name: name, lockFd: -1}
}

func (w *fakeWriter) Rollback() error {
	if w.rollback != nil {
		return w.rollback()
	}
	return nil
}

func (w *fakeWriter) Tick(structural bool) error {
	if !structural {
		return nil
	}
	if w.tick != nil {
		if err := w.tick(structural); err != nil {
			return err
		}
	}
	w.commandsMu.Lock()
	cmds := w.commands
	w.commands = nil
	w.commandsMu.Unlock()
	for _, fn := range cmds {
		fn()
	}
	return nil
}

func (w *fakeWriter) ProcessCommandAsync(reason string, fn func()) error {
	w.commandsMu.Lock()
	defer w.commandsMu.Unlock()
	w.commands = append(w.commands, fn)
	return nil
}

func (w *fakeWriter) TableName() string { return w.name }

func (w *fakeWriter) TransferLock(fd int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lockFd = fd
	return nil
}

func (w *fakeWriter) SetLifecycleManager(m tablewriter.LifecycleManager) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.manager = m
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	manager := w.manager
	closeErr := w.closeErr
	w.mu.Unlock()

	if manager != nil && !manager.OnClose() {
		return nil
	}
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return closeErr
}

func (w *fakeWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// fakeFS is an in-memory lockfile.FS double: every distinct path can be
// locked by exactly one fd at a time.
type fakeFS struct {
	mu      sync.Mutex
	nextFd  int
	locked  map[string]int
	lastErr error
}

func newFakeFS() *fakeFS {
	return &fakeFS{locked: make(map[string]int)}
}

func (fs *fakeFS) Touch(path string) bool { return true }

func (fs *fakeFS) Remove(path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.locked, path)
	return true
}

func (fs *fakeFS) Close(fd int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for path, held := range fs.locked {
		if held == fd {
			delete(fs.locked, path)
		}
	}
	return true
}

func (fs *fakeFS) Errno() error { return fs.lastErr }

func (fs *fakeFS) Lock(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, held := fs.locked[path]; held {
		return -1
	}
	fs.nextFd++
	fs.locked[path] = fs.nextFd
	return fs.nextFd
}

// fakeClock is a manually-advanced Clock double.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) NowMicros() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// newTestPool builds a Pool wired to fake collaborators and a
// WriterFactory that hands out named fakeWriters the test can inspect.
func newTestPool(opts ...Option) (*Pool, *fakeClock, map[string]*fakeWriter) {
	clock := &fakeClock{}
	writers := make(map[string]*fakeWriter)
	var mu sync.Mutex

	factory := func(name string, isNewTable bool) (tablewriter.Writer, error) {
		mu.Lock()
		defer mu.Unlock()
		w := newFakeWriter(name)
		writers[name] = w
		return w, nil
	}

	base := []Option{
		WithClock(clock),
		WithFS(newFakeFS()),
		WithWriterFactory(factory),
	}
	p := Open("/var/testroot", append(base, opts...)...)
	return p, clock, writers
}
