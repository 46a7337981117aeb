// Package deps computes the transitive set of files a source file depends on
// and answers staleness questions against it.
package deps

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/DeusData/depclosure/internal/cache"
	"github.com/DeusData/depclosure/internal/lang"
	"github.com/DeusData/depclosure/internal/resolve"
)

// Set is a dependency closure: absolute paths that resolved to regular files.
// A cached resolution is trusted until the cache is dropped, so a member can
// be gone from disk by the time the caller looks; Stale treats that as a change.
type Set map[string]struct{}

// Has reports whether path is in the set.
func (s Set) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Resolver walks reference graphs. It is safe for concurrent use as long as
// its cache is.
type Resolver struct {
	registry *lang.Registry
	cache    cache.Cache
	fs       resolve.FS
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRegistry replaces the built-in language table entirely.
func WithRegistry(reg *lang.Registry) Option {
	return func(r *Resolver) { r.registry = reg }
}

// WithCache injects the extraction/resolution cache.
func WithCache(c cache.Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithFS swaps the file system, mostly for tests.
func WithFS(fsys resolve.FS) Option {
	return func(r *Resolver) { r.fs = fsys }
}

// New creates a Resolver. Without options it uses the built-in script and
// stylesheet configs, an unbounded in-memory cache and the host file system.
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = lang.Default()
	}
	if r.cache == nil {
		r.cache = cache.NewMemory()
	}
	if r.fs == nil {
		r.fs = resolve.OSFS{}
	}
	return r
}

// Registry returns the language table in use.
func (r *Resolver) Registry() *lang.Registry {
	return r.registry
}

// DependenciesOf returns every file root transitively references.
//
// A root that cannot be stat'ed is an error. References that resolve to
// nothing are skipped. The walk keeps a visited set so reference cycles
// terminate; a file that is reachable from itself appears in its own closure.
func (r *Resolver) DependenciesOf(root string) (Set, error) {
	root = filepath.Clean(root)
	if _, err := r.fs.Stat(root); err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}

	result := make(Set)
	visited := map[string]bool{root: true}
	stack := []string{root}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		refs, ok, err := r.references(current)
		if err != nil {
			if current == root {
				return nil, err
			}
			return nil, fmt.Errorf("expand %s: %w", current, err)
		}
		if !ok {
			continue
		}

		cfg, _ := r.registry.ForPath(current)
		ext := filepath.Ext(current)
		dir := filepath.Dir(current)
		for _, ref := range refs {
			dep, found := r.resolveRef(ext, dir, ref, cfg.Resolvers)
			if !found {
				continue
			}
			result[dep] = struct{}{}
			if !visited[dep] {
				visited[dep] = true
				stack = append(stack, dep)
			}
		}
	}
	return result, nil
}

// references returns the raw references of path, using the extraction cache.
// ok is false when the file has no language config or vanished after it was
// resolved.
func (r *Resolver) references(path string) (refs []string, ok bool, err error) {
	cfg, registered := r.registry.ForPath(path)
	if !registered {
		return nil, false, nil
	}

	info, err := r.fs.Stat(path)
	if err != nil {
		// Resolved earlier in this walk (or a cached resolution) and gone now.
		return nil, false, nil
	}

	key := cache.ExtractionKey{Path: path, ModTime: info.ModTime().UnixNano()}
	if cached, hit := r.cache.GetRefs(key); hit {
		return cached, true, nil
	}

	content, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	refs = lang.Extract(cfg.Extractors, string(content))
	r.cache.PutRefs(key, refs)
	return refs, true, nil
}

// resolveRef turns a raw reference made by a file with extension ext into an
// existing file path.
func (r *Resolver) resolveRef(ext, dir, ref string, steps []lang.ResolverStep) (string, bool) {
	key := cache.ResolutionKey{Ext: ext, Candidate: candidatePath(dir, ref)}
	if p, ok := r.cache.GetResolved(key); ok {
		return p, true
	}
	p, ok := resolve.Resolve(r.fs, key.Candidate, steps)
	if !ok {
		return "", false
	}
	r.cache.PutResolved(key, p)
	return p, true
}

func candidatePath(dir, ref string) string {
	ref = filepath.FromSlash(ref)
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(dir, ref)
}
