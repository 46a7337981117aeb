package deps

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Stale reports whether path or anything it depends on was modified after
// since. A dependency that disappeared after resolution counts as changed.
func (r *Resolver) Stale(path string, since time.Time) (bool, error) {
	path = filepath.Clean(path)
	info, err := r.fs.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat root: %w", err)
	}
	if info.ModTime().After(since) {
		return true, nil
	}

	closure, err := r.DependenciesOf(path)
	if err != nil {
		return false, err
	}
	for dep := range closure {
		depInfo, statErr := r.fs.Stat(dep)
		if statErr != nil || depInfo.ModTime().After(since) {
			return true, nil
		}
	}
	return false, nil
}

// Fingerprint hashes the path, mtime and size of the root and every member of
// its closure. Any edit, addition or removal in the closure changes it.
func (r *Resolver) Fingerprint(path string) (string, error) {
	path = filepath.Clean(path)
	closure, err := r.DependenciesOf(path)
	if err != nil {
		return "", err
	}

	h := xxh3.New()
	files := append([]string{path}, closure.Sorted()...)
	for _, p := range files {
		info, statErr := r.fs.Stat(p)
		h.WriteString(p)
		h.WriteString("\x00")
		if statErr != nil {
			h.WriteString("missing\x00")
			continue
		}
		h.WriteString(strconv.FormatInt(info.ModTime().UnixNano(), 10))
		h.WriteString("\x00")
		h.WriteString(strconv.FormatInt(info.Size(), 10))
		h.WriteString("\x00")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Result is one entry of a batch query.
type Result struct {
	Root string
	Deps Set
}

// DependenciesOfAll computes closures for many roots on all CPUs, sharing
// this resolver's cache. The first error cancels the remaining work.
func (r *Resolver) DependenciesOfAll(ctx context.Context, roots []string) ([]Result, error) {
	results := make([]Result, len(roots))
	numWorkers := runtime.NumCPU()
	if numWorkers > len(roots) {
		numWorkers = len(roots)
	}
	if numWorkers == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			closure, err := r.DependenciesOf(root)
			if err != nil {
				return fmt.Errorf("%s: %w", root, err)
			}
			results[i] = Result{Root: root, Deps: closure}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
