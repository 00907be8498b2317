// Package main provides the entry point for the folder-mcp CLI.
package main

import (
	"os"

	"github.com/folder-mcp/folder-mcp/cmd/folder-mcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
