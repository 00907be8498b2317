package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/logging"
	"github.com/folder-mcp/folder-mcp/internal/mcp"
	"github.com/folder-mcp/folder-mcp/internal/pipeline"
	"github.com/folder-mcp/folder-mcp/internal/preflight"
	"github.com/folder-mcp/folder-mcp/internal/watcher"
)

type serveOptions struct {
	noWatch   bool
	full      bool
	skipCheck bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve <folder> [folder...]",
		Short: "Index folders and serve them over MCP stdio",
		Long: `Serve registers each folder, brings its index up to date, watches it
for changes, and answers MCP requests over stdio.

stdout carries JSON-RPC exclusively; all diagnostics go to the log file.

Examples:
  folder-mcp serve ~/Documents/reports
  folder-mcp serve ~/notes ~/contracts --no-watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Disable file watching (reindex only via the reindex tool)")
	cmd.Flags().BoolVar(&opts.full, "full", false, "Force a full rebuild of every folder on startup")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip preflight environment checks")

	return cmd
}

func runServe(ctx context.Context, folders []string, opts serveOptions) error {
	// stdout is reserved for JSON-RPC; log to file only.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := pipeline.NewManager(logger)
	defer func() { _ = manager.Close() }()

	var watchers []*watcher.FolderWatcher
	defer func() {
		for _, w := range watchers {
			_ = w.Stop()
		}
	}()

	for _, folder := range folders {
		eng, err := manager.Add(folder)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", folder, err)
		}

		if !opts.skipCheck {
			if err := runPreflight(ctx, eng, logger); err != nil {
				return err
			}
		}

		// Bring the index up to date before serving. A failed run leaves
		// the previous index answering; the error is logged and the next
		// watch event or reindex call retries.
		if err := eng.Index(ctx, opts.full); err != nil {
			logger.Error("startup indexing failed",
				slog.String("folder", eng.Folder()),
				slog.String("error", err.Error()))
		}

		if !opts.noWatch {
			w, err := watcher.New(eng.Folder(), eng.Config(), logger)
			if err != nil {
				return fmt.Errorf("failed to watch %s: %w", folder, err)
			}
			watchers = append(watchers, w)
			go func() { _ = w.Start(ctx) }()
			go watchLoop(ctx, eng, w, logger)
		}
	}

	server, err := mcp.NewServer(manager, config.New(), logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// runPreflight validates the environment for one folder. Checks run
// once per index; results land in the log because stdout belongs to
// JSON-RPC. A critical failure aborts startup, warnings do not.
func runPreflight(ctx context.Context, eng *pipeline.Engine, logger *slog.Logger) error {
	if !preflight.NeedsCheck(eng.Folder()) {
		return nil
	}

	results := preflight.New(eng.Config()).RunAll(ctx, eng.Folder())
	for _, r := range results {
		logger.Info("preflight check",
			slog.String("folder", eng.Folder()),
			slog.String("check", r.Name),
			slog.String("status", r.Status.String()),
			slog.String("message", r.Message))
	}

	if preflight.HasCriticalFailures(results) {
		for _, r := range results {
			if r.IsCritical() {
				return fmt.Errorf("preflight failed for %s: %s: %s", eng.Folder(), r.Name, r.Message)
			}
		}
	}
	if err := preflight.MarkPassed(eng.Folder()); err != nil {
		logger.Warn("failed to record preflight marker", slog.String("error", err.Error()))
	}
	return nil
}

// watchLoop triggers an incremental run for every debounced event
// batch. The engine diffs against its fingerprint, so the batch
// contents only matter as a wake-up signal.
func watchLoop(ctx context.Context, eng *pipeline.Engine, w *watcher.FolderWatcher, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			logger.Debug("change batch received",
				slog.String("folder", eng.Folder()),
				slog.Int("events", len(batch)))
			if err := eng.Index(ctx, false); err != nil {
				logger.Error("incremental indexing failed",
					slog.String("folder", eng.Folder()),
					slog.String("error", err.Error()))
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			logger.Warn("watcher error",
				slog.String("folder", eng.Folder()),
				slog.String("error", err.Error()))
		}
	}
}
