package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeusData/depclosure/internal/discover"
	"github.com/DeusData/depclosure/internal/stamp"
	"github.com/DeusData/depclosure/internal/store"
	"github.com/DeusData/depclosure/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	scanPartials bool
	watchStamp   bool
	watchEvents  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Compute the dependency closure of every source file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Poll a directory and report files whose dependency closure changed",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	scanCmd.Flags().BoolVar(&scanPartials, "partials", false, "include _partial files as roots")
	watchCmd.Flags().BoolVar(&watchStamp, "stamp", false, "record a build stamp for each changed root")
	watchCmd.Flags().BoolVar(&watchEvents, "events", false, "wake on file system events instead of waiting for the next poll")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
}

func discoverOptions(e *env, partials bool) *discover.Options {
	return &discover.Options{
		Ignore:       e.cfg.Ignore,
		SkipPartials: !partials,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	t0 := time.Now()
	files, err := discover.Discover(ctx, args[0], e.resolver.Registry(), discoverOptions(e, scanPartials))
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	results, err := e.resolver.DependenciesOfAll(ctx, discover.Paths(files))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	total := 0
	for i, r := range results {
		fmt.Fprintf(out, "%d\t%s\n", len(r.Deps), files[i].RelPath)
		total += len(r.Deps)
	}
	slog.Info("scan.done", "roots", len(results), "edges", total, "elapsed", time.Since(t0))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	dir := args[0]
	opts := discoverOptions(e, false)

	rootsFn := func(ctx context.Context) ([]string, error) {
		files, err := discover.Discover(ctx, dir, e.resolver.Registry(), opts)
		if err != nil {
			return nil, err
		}
		return discover.Paths(files), nil
	}

	var s *store.Store
	if watchStamp {
		s, err = openStore()
		if err != nil {
			return err
		}
		defer s.Close()
	}

	out := cmd.OutOrStdout()
	changeFn := func(_ context.Context, root string) error {
		fmt.Fprintln(out, root)
		if s == nil {
			return nil
		}
		_, err := stamp.Record(e.resolver, s, root, time.Now())
		return err
	}

	w := watcher.New(e.resolver, rootsFn, changeFn)
	if watchEvents {
		skip := func(name string) bool { return discover.IGNORE_PATTERNS[name] }
		go func() {
			if err := watcher.WakeOnEvents(ctx, dir, w, skip); err != nil {
				slog.Warn("watch.events", "err", err)
			}
		}()
	}

	slog.Info("watch.start", "dir", dir, "events", watchEvents)
	w.Run(ctx)
	return nil
}
