package writerpool

import (
	"path/filepath"
	"strings"
	"sync"
)

// pathBuilders pools scratch path builders for the naming operations (lock,
// unlock) that need to compose "<root>/<table>" repeatedly. Spec.md §5
// notes the source's scratch path buffer is shared and mutated assuming
// serial use, and allows either a stack/thread-local builder or documented
// per-instance serialization; a sync.Pool gives every concurrent caller its
// own builder without a shared mutable buffer, and without allocating one
// per call on the common path. No pack library targets this (it is a
// handful of lines over strings.Builder), so this is a justified stdlib
// leaf rather than a third-party dependency.
var pathBuilders = sync.Pool{
	New: func() any { return new(strings.Builder) },
}

// lockPath returns the path of table's administrative lock file, a
// sibling of its data directory rather than the directory itself, so
// taking the lock never races the writer's own directory operations.
func lockPath(root, table string) string {
	b, _ := pathBuilders.Get().(*strings.Builder)
	b.Reset()
	defer pathBuilders.Put(b)

	b.WriteString(filepath.Join(root, table))
	b.WriteString(".lock")
	return b.String()
}
