package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/folder-mcp/folder-mcp/configs"
	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/output"
)

type initOptions struct {
	user  bool
	force bool
}

func newInitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [folder]",
		Short: "Write a commented configuration template",
		Long: `Init writes a commented .folder-mcp.yaml template into a folder, or
with --user the machine-wide template at ~/.config/folder-mcp/config.yaml.

Existing files are never overwritten unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := "."
			if len(args) > 0 {
				folder = args[0]
			}
			return runInit(cmd, folder, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.user, "user", false, "Write the user config instead of a folder config")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, folder string, opts initOptions) error {
	out := output.NewAuto(cmd.OutOrStdout())

	var path, template string
	if opts.user {
		path = config.UserConfigPath()
		template = configs.UserConfigTemplate
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	} else {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return err
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return fmt.Errorf("not a folder: %s", folder)
		}
		path = filepath.Join(abs, ".folder-mcp.yaml")
		template = configs.FolderConfigTemplate
	}

	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	out.Successf("wrote %s", out.Highlight(path))
	return nil
}
