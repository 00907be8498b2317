package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/folder-mcp/folder-mcp/internal/output"
	"github.com/folder-mcp/folder-mcp/internal/pipeline"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

type statusOptions struct {
	format string
}

func newStatusCmd() *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status <folder>",
		Short: "Show a folder's index health",
		Long: `Status reports indexed and failed document counts, the embedding
model recorded in the index, and per-file failure records.

Examples:
  folder-mcp status ~/Documents/reports
  folder-mcp status ~/notes --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

type statusReport struct {
	Folder   string             `json:"folder"`
	Counts   store.StatusCounts `json:"counts"`
	Failures []store.Failure    `json:"failures,omitempty"`
}

func runStatus(ctx context.Context, cmd *cobra.Command, folder string, opts statusOptions) error {
	manager := pipeline.NewManager(nil)
	defer func() { _ = manager.Close() }()

	eng, err := manager.Add(folder)
	if err != nil {
		return err
	}

	counts, err := eng.Status(ctx)
	if err != nil {
		return err
	}
	failures, err := eng.Store().SQL().ListFailures(ctx)
	if err != nil {
		return err
	}

	report := statusReport{Folder: eng.Folder(), Counts: counts, Failures: failures}
	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := output.NewAuto(cmd.OutOrStdout())
	out.Header(report.Folder)
	out.Field("indexed", counts.Indexed)
	out.Field("failed", counts.Failed)
	out.Field("pending", counts.Pending)
	if counts.ModelID != "" {
		out.Field("model", counts.ModelID)
		out.Field("dimensions", counts.Dimensions)
	}
	if !counts.LastUpdated.IsZero() {
		out.Field("last updated", counts.LastUpdated.Format("2006-01-02 15:04:05"))
	}

	if len(failures) > 0 {
		out.Newline()
		out.Header("Failures")
		for _, f := range failures {
			out.Warningf("%s [%s] %s", f.Path, f.Code, f.Message)
		}
	}
	return nil
}
