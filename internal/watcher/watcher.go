package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/DeusData/depclosure/internal/deps"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

// RootsFunc lists the files to watch. It is called on every poll so newly
// created roots are picked up.
type RootsFunc func(ctx context.Context) ([]string, error)

// ChangeFunc is called for a root whose closure changed since the last poll.
type ChangeFunc func(ctx context.Context, root string) error

// Watcher polls root files, fingerprints their dependency closures, and
// reports roots whose closure changed.
type Watcher struct {
	resolver *deps.Resolver
	rootsFn  RootsFunc
	changeFn ChangeFunc

	// snapshot maps root -> closure fingerprint; nil until the baseline poll.
	snapshot map[string]string
	interval time.Duration
	nextPoll time.Time

	wake chan struct{}
}

// New creates a Watcher. changeFn is called once per changed root.
func New(r *deps.Resolver, rootsFn RootsFunc, changeFn ChangeFunc) *Watcher {
	return &Watcher{
		resolver: r,
		rootsFn:  rootsFn,
		changeFn: changeFn,
		wake:     make(chan struct{}, 1),
	}
}

// Wake asks Run to poll on its next tick regardless of the adaptive interval.
// Safe to call from any goroutine; repeated calls before the poll coalesce.
func (w *Watcher) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. Ticks at baseInterval, polling only when
// the adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-w.wake:
			default:
				if time.Now().Before(w.nextPoll) {
					continue
				}
			}
			w.poll(ctx)
		}
	}
}

// poll captures fingerprints for every root and compares with the previous
// snapshot. The first poll only records a baseline.
func (w *Watcher) poll(ctx context.Context) {
	roots, err := w.rootsFn(ctx)
	if err != nil {
		slog.Warn("watcher.roots", "err", err)
		w.nextPoll = time.Now().Add(maxInterval)
		return
	}

	snap := w.captureSnapshot(roots)
	interval := pollInterval(len(roots))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "roots", len(snap))
		w.snapshot = snap
		w.interval = interval
		w.nextPoll = time.Now().Add(interval)
		return
	}

	next := make(map[string]string, len(snap))
	for root, fp := range snap {
		prev, seen := w.snapshot[root]
		if seen && prev == fp {
			next[root] = fp
			continue
		}
		slog.Info("watcher.changed", "root", root, "new", !seen)
		if err := w.changeFn(ctx, root); err != nil {
			slog.Warn("watcher.change", "root", root, "err", err)
			// Keep the old fingerprint so the change is retried next cycle.
			if seen {
				next[root] = prev
			}
			continue
		}
		next[root] = fp
	}

	w.snapshot = next
	w.interval = interval
	w.nextPoll = time.Now().Add(interval)
}

// captureSnapshot fingerprints each root. Roots that fail (deleted between
// listing and hashing) are left out.
func (w *Watcher) captureSnapshot(roots []string) map[string]string {
	snap := make(map[string]string, len(roots))
	for _, root := range roots {
		fp, err := w.resolver.Fingerprint(root)
		if err != nil {
			slog.Debug("watcher.fingerprint", "root", root, "err", err)
			continue
		}
		snap[root] = fp
	}
	return snap
}

// pollInterval computes the adaptive interval from root count.
// 1s base + 1s per 500 roots, capped at 60s.
func pollInterval(rootCount int) time.Duration {
	ms := 1000 + (rootCount/500)*1000
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}
