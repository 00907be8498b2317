package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/folder-mcp/folder-mcp/internal/output"
	"github.com/folder-mcp/folder-mcp/internal/pipeline"
	"github.com/folder-mcp/folder-mcp/internal/retrieval"
)

type searchOptions struct {
	limit  int
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <folder> <query>",
		Short: "Search a folder's indexed documents",
		Long: `Search ranks the folder's documents by semantic similarity, boosts
filename matches, and adds exact keyword hits for terms embedding models
tokenize poorly.

Examples:
  folder-mcp search ~/Documents/reports "vendor spend freeze"
  folder-mcp search ~/notes "BGE-M3 evaluation" --limit 5 --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return runSearch(cmd.Context(), cmd, args[0], query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, folder, query string, opts searchOptions) error {
	manager := pipeline.NewManager(nil)
	defer func() { _ = manager.Close() }()

	eng, err := manager.Add(folder)
	if err != nil {
		return err
	}

	service := retrieval.NewService(manager, eng.Config(), nil)
	answer, err := service.Search(ctx, eng.Folder(), query, opts.limit)
	if err != nil {
		return err
	}

	out := output.NewAuto(cmd.OutOrStdout())
	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	printSearchAnswer(out, query, answer)
	return nil
}

func printSearchAnswer(out *output.Writer, query string, answer *retrieval.SearchAnswer) {
	if len(answer.Results) == 0 {
		out.Printf("No results for %q.\n", query)
		return
	}

	out.Printf("%d results for %q (confidence %.2f)\n\n",
		len(answer.Results), query, answer.Insights.Confidence)

	for i, r := range answer.Results {
		location := r.DocumentPath
		if r.ChunkIndex > 0 {
			location = fmt.Sprintf("%s #%d", r.DocumentPath, r.ChunkIndex)
		}
		out.Printf("%2d. %s  %.3f  %s\n", i+1, out.Highlight(location), r.Score, r.MatchType)
		if r.Snippet != "" {
			out.Printf("    %s\n", r.Snippet)
		}
		if r.Context.WhyRelevant != "" {
			out.Printf("    %s\n", r.Context.WhyRelevant)
		}
		out.Newline()
	}

	if len(answer.Insights.PoorTokenizersDetected) > 0 {
		out.Printf("Keyword-matched terms: %s\n",
			strings.Join(answer.Insights.PoorTokenizersDetected, ", "))
	}
}
