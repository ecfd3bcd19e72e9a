// Package lockfile provides the advisory, cross-process file lock the pool
// uses to extend the single-writer-per-table invariant beyond a single
// process. It is the filesystem contract spec.md §6.2 treats as an external
// collaborator, grounded in a directory-lock sequence of os.OpenFile +
// syscall.Flock.
package lockfile

import (
	"os"
	"sync"
	"syscall"
)

// FS is the filesystem contract a Pool depends on for administrative
// locking: touch/remove/close on plain paths, and an advisory exclusive
// lock that fails fast instead of blocking.
type FS interface {
	// Touch creates path if it does not already exist. It returns false on
	// failure; call Errno for the reason.
	Touch(path string) bool
	// Remove deletes path. It returns false on failure; call Errno for the
	// reason.
	Remove(path string) bool
	// Close closes an open file descriptor previously returned by Lock. It
	// returns false on failure; call Errno for the reason.
	Close(fd int) bool
	// Errno returns the error from the most recent failed call on this FS,
	// or nil if the most recent call succeeded.
	Errno() error
	// Lock attempts a non-blocking advisory exclusive lock on path,
	// creating it if necessary. It returns -1 on failure; call Errno for
	// the reason.
	Lock(path string) int
}

// OSFileSystem is the default FS implementation, backed directly by the
// host's filesystem and an flock(2)-style advisory lock. A single instance
// is shared across every table's operations on a Pool (Pool.fs), so lastErr
// is guarded by mu rather than left to race across concurrent Touch/Remove/
// Close/Lock/Errno calls from different goroutines.
type OSFileSystem struct {
	mu      sync.Mutex
	lastErr error
}

// NewOSFileSystem returns an FS backed by the real filesystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (fs *OSFileSystem) setErrno(err error) {
	fs.mu.Lock()
	fs.lastErr = err
	fs.mu.Unlock()
}

func (fs *OSFileSystem) Touch(path string) bool {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	fs.setErrno(err)
	if err != nil {
		return false
	}
	return f.Close() == nil
}

func (fs *OSFileSystem) Remove(path string) bool {
	err := os.Remove(path)
	fs.setErrno(err)
	return err == nil
}

func (fs *OSFileSystem) Close(fd int) bool {
	err := syscall.Close(fd)
	fs.setErrno(err)
	return err == nil
}

func (fs *OSFileSystem) Errno() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastErr
}

// Lock opens path (creating it if necessary) and attempts a non-blocking
// exclusive flock. On any failure — the open, or the lock being already
// held by another process — it returns -1 and records the cause in Errno.
func (fs *OSFileSystem) Lock(path string) int {
	fd, err := syscall.Open(path, syscall.O_CREAT|syscall.O_RDWR, 0644)
	if err != nil {
		fs.setErrno(err)
		return -1
	}

	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		fs.setErrno(err)
		_ = syscall.Close(fd)
		return -1
	}

	fs.setErrno(nil)
	return fd
}
