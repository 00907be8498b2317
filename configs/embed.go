// Package configs embeds configuration templates so every
// distribution of the binary can materialize them, source builds and
// releases alike. `folder-mcp init` writes FolderConfigTemplate into a
// folder; `folder-mcp init --user` writes UserConfigTemplate to the
// XDG config path.
package configs

import _ "embed"

// FolderConfigTemplate is the template for per-folder configuration,
// written as .folder-mcp.yaml in the folder root.
//
//go:embed folder-config.example.yaml
var FolderConfigTemplate string

// UserConfigTemplate is the template for machine-wide configuration at
// ~/.config/folder-mcp/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
