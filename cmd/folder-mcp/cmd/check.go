package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/output"
	"github.com/folder-mcp/folder-mcp/internal/preflight"
)

func newCheckCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check <folder>",
		Short: "Run preflight checks for a folder",
		Long: `Check validates that a folder can be indexed and served: free disk
space, write access, and reachability of a configured embedding endpoint.

Serve runs the same checks automatically on first startup; check runs them
on demand and clears the cached pass so the next serve re-validates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")

	return cmd
}

func runCheck(cmd *cobra.Command, folder string, verbose bool) error {
	cfg, err := config.Load(folder)
	if err != nil {
		return err
	}

	checker := preflight.New(cfg, preflight.WithVerbose(verbose))
	results := checker.RunAll(cmd.Context(), folder)
	checker.PrintResults(output.NewAuto(cmd.OutOrStdout()), folder, results)

	if err := preflight.ClearMarker(folder); err != nil {
		return err
	}
	if preflight.HasCriticalFailures(results) {
		return fmt.Errorf("preflight failed for %s", folder)
	}
	return nil
}
