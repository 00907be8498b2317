package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/output"
	"github.com/folder-mcp/folder-mcp/internal/pipeline"
	"github.com/folder-mcp/folder-mcp/internal/ui"
)

type indexOptions struct {
	full    bool
	verbose bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <folder>",
		Short: "Index a folder's documents",
		Long: `Index parses, embeds, and stores every supported document in the
folder. Runs are incremental: unchanged files are skipped based on the
stored fingerprint.

Examples:
  folder-mcp index ~/Documents/reports
  folder-mcp index ~/notes --full`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.full, "full", false, "Reprocess every file, ignoring the stored fingerprint")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print every indexed file")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, folder string, opts indexOptions) error {
	cfg, err := config.Load(folder)
	if err != nil {
		return err
	}

	eng, err := pipeline.NewEngine(folder, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", folder, err)
	}
	defer func() { _ = eng.Close() }()

	view := ui.NewView(output.NewAuto(cmd.OutOrStdout()), opts.verbose)
	events, cancel := eng.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			view.Handle(ev)
		}
	}()

	runErr := eng.Index(ctx, opts.full)
	cancel()
	<-done

	if runErr != nil {
		return runErr
	}
	view.Complete()
	return nil
}
