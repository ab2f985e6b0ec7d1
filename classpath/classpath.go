// Package classpath searches an ordered list of open DEX containers for
// class definitions, mirroring how a runtime resolves a descriptor
// against its boot and application class path. It also offers a
// filesystem watcher that flags containers whose backing files change
// on disk after they were mapped.
package classpath

import (
	"sync"

	"github.com/orizon-lang/dexfile"
)

// Entry pairs an open container with its staleness flag.
type Entry struct {
	Dex *dexfile.DexFile

	mu    sync.Mutex
	stale bool
}

// Stale reports whether the entry's backing file changed since it was
// opened.
func (e *Entry) Stale() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stale
}

func (e *Entry) markStale() {
	e.mu.Lock()
	e.stale = true
	e.mu.Unlock()
}

// ClassPath is an ordered list of open containers. The list itself is
// immutable after construction; lookups are safe for concurrent use.
type ClassPath struct {
	entries []*Entry
}

// New builds a class path over the given containers, in search order.
func New(files ...*dexfile.DexFile) *ClassPath {
	cp := &ClassPath{entries: make([]*Entry, 0, len(files))}
	for _, d := range files {
		cp.entries = append(cp.entries, &Entry{Dex: d})
	}
	return cp
}

// Entries returns the path's entries in search order.
func (cp *ClassPath) Entries() []*Entry { return cp.entries }

// FindClass locates the first container defining the class with the
// given raw descriptor bytes. Both results are nil when no container
// defines it.
func (cp *ClassPath) FindClass(descriptor []byte) (*dexfile.DexFile, *dexfile.ClassDef, error) {
	for _, e := range cp.entries {
		def, err := e.Dex.FindClassDef(descriptor)
		if err != nil {
			return nil, nil, err
		}
		if def != nil {
			return e.Dex, def, nil
		}
	}
	return nil, nil, nil
}
