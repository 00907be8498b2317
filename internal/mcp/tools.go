package mcp

import (
	"time"

	"github.com/folder-mcp/folder-mcp/internal/retrieval"
	"github.com/folder-mcp/folder-mcp/internal/store"
	"github.com/folder-mcp/folder-mcp/internal/telemetry"
)

// ListFoldersInput is the input schema for list_folders. No parameters.
type ListFoldersInput struct{}

// ListFoldersOutput is the output schema for list_folders.
type ListFoldersOutput struct {
	Folders []retrieval.FolderSummary `json:"folders" jsonschema:"registered folders with index status and topic preview"`
}

// ListDocumentsInput is the input schema for list_documents.
type ListDocumentsInput struct {
	Folder  string `json:"folder" jsonschema:"absolute path of a registered folder"`
	Subpath string `json:"subpath,omitempty" jsonschema:"folder-relative subpath to list, empty for the root"`
}

// ExploreInput is the input schema for explore.
type ExploreInput struct {
	Folder  string `json:"folder" jsonschema:"absolute path of a registered folder"`
	Subpath string `json:"subpath,omitempty" jsonschema:"folder-relative subpath to explore, empty for the root"`
}

// OutlineInput is the input schema for get_document_outline.
type OutlineInput struct {
	Folder string `json:"folder" jsonschema:"absolute path of a registered folder"`
	Path   string `json:"path" jsonschema:"folder-relative document path"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Folder string `json:"folder" jsonschema:"absolute path of a registered folder"`
	Query  string `json:"query" jsonschema:"natural-language search query, 2 to 500 characters"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, max 50"`
}

// ReindexInput is the input schema for reindex.
type ReindexInput struct {
	Folder string `json:"folder" jsonschema:"absolute path of a registered folder"`
	Full   bool   `json:"full,omitempty" jsonschema:"true forces a full rebuild instead of an incremental run"`
}

// ReindexOutput is the output schema for reindex.
type ReindexOutput struct {
	Folder     string `json:"folder"`
	Indexed    int    `json:"indexed"`
	Failed     int    `json:"failed"`
	Deleted    int    `json:"deleted"`
	DurationMS int64  `json:"duration_ms"`
}

// StatusInput is the input schema for status.
type StatusInput struct {
	Folder string `json:"folder" jsonschema:"absolute path of a registered folder"`
}

// StatusFailure is one failure entry in a status answer.
type StatusFailure struct {
	Path       string `json:"path"`
	Scope      string `json:"scope"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Attempts   int    `json:"attempts"`
}

// StatusOutput is the output schema for status. QueryMetrics covers
// the whole server, not just the requested folder.
type StatusOutput struct {
	Folder       string              `json:"folder"`
	Indexed      int                 `json:"indexed"`
	Failed       int                 `json:"failed"`
	Pending      int                 `json:"pending"`
	ModelID      string              `json:"model_id"`
	Dimensions   int                 `json:"dimensions"`
	LastUpdated  time.Time           `json:"last_updated"`
	Failures     []StatusFailure     `json:"failures,omitempty"`
	QueryMetrics *telemetry.Snapshot `json:"query_metrics,omitempty"`
}

func statusFailure(f store.Failure) StatusFailure {
	sf := StatusFailure{
		Path:     f.Path,
		Scope:    string(f.Scope),
		Code:     f.Code,
		Message:  f.Message,
		Attempts: f.Attempts,
	}
	if f.ChunkIndex != store.DocScopedChunk {
		sf.ChunkIndex = f.ChunkIndex
	}
	return sf
}
