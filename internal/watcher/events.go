package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// SkipDirFunc reports whether a directory (by base name) should not be
// watched for events.
type SkipDirFunc func(name string) bool

// WakeOnEvents watches dir recursively with fsnotify and wakes w on every
// file system event, so edits are picked up on the next tick instead of after
// the adaptive interval. It blocks until ctx is cancelled. Polling stays the
// source of truth; events only shorten the wait.
func WakeOnEvents(ctx context.Context, dir string, w *Watcher, skip SkipDirFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()

	if err := addRecursive(fw, dir, skip); err != nil {
		return err
	}
	slog.Debug("watcher.events", "dir", dir, "watched", len(fw.WatchList()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					_ = addRecursive(fw, ev.Name, skip)
				}
			}
			w.Wake()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher.events", "err", err)
		}
	}
}

// addRecursive adds root and every non-skipped directory below it.
func addRecursive(fw *fsnotify.Watcher, root string, skip SkipDirFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skip != nil && skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
