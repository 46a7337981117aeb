package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/DeusData/depclosure/internal/stamp"
	"github.com/spf13/cobra"
)

var staleSince string

var staleCmd = &cobra.Command{
	Use:   "stale <file>",
	Short: "Report whether a file or any dependency changed since its last build",
	Long: `Prints "stale" or "fresh". Without --since the reference time is the
stamp recorded by "depclosure stamp"; a file that was never stamped is stale.`,
	Args: cobra.ExactArgs(1),
	RunE: runStale,
}

var stampCmd = &cobra.Command{
	Use:   "stamp <file>...",
	Short: "Record that files were built now",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStamp,
}

func init() {
	staleCmd.Flags().StringVar(&staleSince, "since", "", "reference time (RFC 3339)")
	rootCmd.AddCommand(staleCmd)
	rootCmd.AddCommand(stampCmd)
}

func runStale(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	var since *time.Time
	if staleSince != "" {
		ts, parseErr := time.Parse(time.RFC3339, staleSince)
		if parseErr != nil {
			return fmt.Errorf("invalid --since: %w", parseErr)
		}
		since = &ts
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	stale, err := stamp.Check(e.resolver, s, root, since)
	if err != nil {
		return err
	}
	if stale {
		fmt.Fprintln(cmd.OutOrStdout(), "stale")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "fresh")
	}
	return nil
}

func runStamp(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	now := time.Now()
	for _, arg := range args {
		root, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		st, err := stamp.Record(e.resolver, s, root, now)
		if err != nil {
			return err
		}
		slog.Info("stamp.recorded", "root", st.RootPath, "fingerprint", st.Fingerprint)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", st.Fingerprint, st.RootPath)
	}
	return nil
}
