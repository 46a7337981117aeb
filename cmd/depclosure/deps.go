package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var depsJSON bool

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "Print the transitive dependency closure of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func init() {
	depsCmd.Flags().BoolVar(&depsJSON, "json", false, "print a JSON array")
	rootCmd.AddCommand(depsCmd)
}

func runDeps(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	closure, err := e.resolver.DependenciesOf(root)
	if err != nil {
		return err
	}
	sorted := closure.Sorted()

	out := cmd.OutOrStdout()
	if depsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sorted)
	}
	for _, p := range sorted {
		fmt.Fprintln(out, p)
	}
	return nil
}
