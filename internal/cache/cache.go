package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ExtractionKey identifies one version of a file. A new mtime is a new key,
// so edits never need explicit invalidation.
type ExtractionKey struct {
	Path    string
	ModTime int64 // UnixNano
}

// ResolutionKey identifies a candidate path as seen from one file type. The
// same candidate resolves differently per language ("button" is button.js
// from a script and _button.scss from a stylesheet), so the referrer's
// extension is part of the key.
type ResolutionKey struct {
	Ext       string
	Candidate string
}

// Cache memoizes reference extraction per file version and successful
// resolutions per (extension, candidate). Implementations must be safe for
// concurrent use.
type Cache interface {
	GetRefs(key ExtractionKey) ([]string, bool)
	PutRefs(key ExtractionKey, refs []string)
	// GetResolved returns the file a candidate resolved to earlier.
	GetResolved(key ResolutionKey) (string, bool)
	// PutResolved records a successful resolution. Misses are never stored.
	PutResolved(key ResolutionKey, resolved string)
}

// Memory is the default cache: two append-only maps that live as long as
// the resolver that owns them.
type Memory struct {
	refsMu sync.RWMutex
	refs   map[ExtractionKey][]string

	resolvedMu sync.RWMutex
	resolved   map[ResolutionKey]string
}

// NewMemory creates an empty unbounded cache.
func NewMemory() *Memory {
	return &Memory{
		refs:     make(map[ExtractionKey][]string),
		resolved: make(map[ResolutionKey]string),
	}
}

// GetRefs implements Cache.
func (m *Memory) GetRefs(key ExtractionKey) ([]string, bool) {
	m.refsMu.RLock()
	defer m.refsMu.RUnlock()
	refs, ok := m.refs[key]
	return refs, ok
}

// PutRefs implements Cache.
func (m *Memory) PutRefs(key ExtractionKey, refs []string) {
	m.refsMu.Lock()
	defer m.refsMu.Unlock()
	m.refs[key] = refs
}

// GetResolved implements Cache.
func (m *Memory) GetResolved(key ResolutionKey) (string, bool) {
	m.resolvedMu.RLock()
	defer m.resolvedMu.RUnlock()
	p, ok := m.resolved[key]
	return p, ok
}

// PutResolved implements Cache.
func (m *Memory) PutResolved(key ResolutionKey, resolved string) {
	m.resolvedMu.Lock()
	defer m.resolvedMu.Unlock()
	m.resolved[key] = resolved
}

// Len returns the number of extraction and resolution entries.
func (m *Memory) Len() (refs, resolved int) {
	m.refsMu.RLock()
	refs = len(m.refs)
	m.refsMu.RUnlock()
	m.resolvedMu.RLock()
	resolved = len(m.resolved)
	m.resolvedMu.RUnlock()
	return refs, resolved
}

// Bounded caps each table at a fixed number of entries, evicting the least
// recently used. Only use it for long-running processes: an evicted entry is
// recomputed on the next query, which can observe files created since.
type Bounded struct {
	refs     *lru.Cache[ExtractionKey, []string]
	resolved *lru.Cache[ResolutionKey, string]
}

// NewBounded creates a cache holding at most size entries per table.
func NewBounded(size int) (*Bounded, error) {
	refs, err := lru.New[ExtractionKey, []string](size)
	if err != nil {
		return nil, fmt.Errorf("extraction cache: %w", err)
	}
	resolved, err := lru.New[ResolutionKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("resolution cache: %w", err)
	}
	return &Bounded{refs: refs, resolved: resolved}, nil
}

// GetRefs implements Cache.
func (b *Bounded) GetRefs(key ExtractionKey) ([]string, bool) { return b.refs.Get(key) }

// PutRefs implements Cache.
func (b *Bounded) PutRefs(key ExtractionKey, refs []string) { b.refs.Add(key, refs) }

// GetResolved implements Cache.
func (b *Bounded) GetResolved(key ResolutionKey) (string, bool) { return b.resolved.Get(key) }

// PutResolved implements Cache.
func (b *Bounded) PutResolved(key ResolutionKey, resolved string) { b.resolved.Add(key, resolved) }

// Len returns the number of extraction and resolution entries.
func (b *Bounded) Len() (refs, resolved int) {
	return b.refs.Len(), b.resolved.Len()
}

// New returns Memory for size <= 0 and a Bounded cache otherwise.
func New(size int) (Cache, error) {
	if size <= 0 {
		return NewMemory(), nil
	}
	return NewBounded(size)
}
