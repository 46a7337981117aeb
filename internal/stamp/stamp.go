// Package stamp answers "does this root need rebuilding" from recorded build
// stamps and the root's dependency closure.
package stamp

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/DeusData/depclosure/internal/deps"
	"github.com/DeusData/depclosure/internal/store"
)

// Record stores builtAt and the current closure fingerprint for root.
func Record(r *deps.Resolver, s *store.Store, root string, builtAt time.Time) (store.Stamp, error) {
	root = filepath.Clean(root)
	fp, err := r.Fingerprint(root)
	if err != nil {
		return store.Stamp{}, err
	}
	st := store.Stamp{RootPath: root, BuiltAt: builtAt, Fingerprint: fp}
	if err := s.PutStamp(st); err != nil {
		return store.Stamp{}, err
	}
	return st, nil
}

// Check reports whether root is stale relative to since. A nil since uses the
// stored stamp: the root is stale if anything in its closure was modified
// after the stamp, or if the closure fingerprint no longer matches (a member
// was added, removed or replaced by a file with an older mtime). A root that
// was never stamped is stale.
func Check(r *deps.Resolver, s *store.Store, root string, since *time.Time) (bool, error) {
	root = filepath.Clean(root)
	if since != nil {
		return r.Stale(root, *since)
	}

	st, err := s.GetStamp(root)
	if err != nil {
		return false, fmt.Errorf("load stamp: %w", err)
	}
	if st == nil {
		// Still resolve the root so a missing file is reported, not built.
		if _, err := r.DependenciesOf(root); err != nil {
			return false, err
		}
		return true, nil
	}

	stale, err := r.Stale(root, st.BuiltAt)
	if err != nil || stale {
		return stale, err
	}
	fp, err := r.Fingerprint(root)
	if err != nil {
		return false, err
	}
	return fp != st.Fingerprint, nil
}
