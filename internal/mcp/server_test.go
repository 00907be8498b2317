package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folder-mcp/folder-mcp/internal/pipeline"
)

const testProse = `The quarterly budget review covers vendor spend and headcount planning.
Vendor spend grew faster than headcount planning expected, so the budget review
recommends a vendor spend freeze. The headcount planning section of the budget
review lists open roles by team, and the vendor spend appendix breaks invoices
down by quarter for the TMOAT audit trail.`

type serverFixture struct {
	server  *Server
	manager *pipeline.Manager
	folder  string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "budget-review.md"),
		[]byte("# Budget Review\n\n"+testProse), 0o644))

	m := pipeline.NewManager(nil)
	t.Cleanup(func() { _ = m.Close() })

	eng, err := m.Add(dir)
	require.NoError(t, err)
	require.NoError(t, eng.Index(context.Background(), false))

	s, err := NewServer(m, nil, nil)
	require.NoError(t, err)

	abs, _ := filepath.Abs(dir)
	return &serverFixture{server: s, manager: m, folder: abs}
}

func TestNewServer_RequiresManager(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	require.Error(t, err)
}

func TestListFoldersHandler(t *testing.T) {
	f := newServerFixture(t)

	_, out, err := f.server.listFoldersHandler(context.Background(), nil, ListFoldersInput{})
	require.NoError(t, err)
	require.Len(t, out.Folders, 1)
	assert.Equal(t, f.folder, out.Folders[0].Path)
	assert.Equal(t, 1, out.Folders[0].IndexedCount)
	assert.NotEmpty(t, out.Folders[0].ModelID)
}

func TestListDocumentsHandler(t *testing.T) {
	f := newServerFixture(t)

	_, listing, err := f.server.listDocumentsHandler(context.Background(), nil,
		ListDocumentsInput{Folder: f.folder})
	require.NoError(t, err)
	require.Len(t, listing.Documents, 1)
	assert.Equal(t, "budget-review.md", listing.Documents[0].Path)
	assert.NotEmpty(t, listing.Documents[0].PrimaryPurpose)
}

func TestListDocumentsHandler_RequiresFolder(t *testing.T) {
	f := newServerFixture(t)

	_, _, err := f.server.listDocumentsHandler(context.Background(), nil, ListDocumentsInput{})
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestExploreHandler_UnknownFolder(t *testing.T) {
	f := newServerFixture(t)

	_, _, err := f.server.exploreHandler(context.Background(), nil,
		ExploreInput{Folder: filepath.Join(f.folder, "never-registered")})
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeFolderNotIndexed, mcpErr.Code)
}

func TestOutlineHandler(t *testing.T) {
	f := newServerFixture(t)

	_, outline, err := f.server.outlineHandler(context.Background(), nil,
		OutlineInput{Folder: f.folder, Path: "budget-review.md"})
	require.NoError(t, err)
	assert.Equal(t, "budget-review.md", outline.Path)
	assert.NotEmpty(t, outline.PrimaryPurpose)
	assert.Greater(t, outline.ChunkCount, 0)
}

func TestOutlineHandler_MissingDocument(t *testing.T) {
	f := newServerFixture(t)

	_, _, err := f.server.outlineHandler(context.Background(), nil,
		OutlineInput{Folder: f.folder, Path: "no-such.md"})
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
}

func TestSearchHandler(t *testing.T) {
	f := newServerFixture(t)

	_, answer, err := f.server.searchHandler(context.Background(), nil,
		SearchInput{Folder: f.folder, Query: "vendor spend freeze"})
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.NotEmpty(t, answer.Insights.QueryInterpretation)
	for _, r := range answer.Results {
		assert.Equal(t, "budget-review.md", r.DocumentPath)
		assert.NotEmpty(t, r.Context.SearchStrategy)
	}
}

func TestSearchHandler_QueryTooShort(t *testing.T) {
	f := newServerFixture(t)

	_, _, err := f.server.searchHandler(context.Background(), nil,
		SearchInput{Folder: f.folder, Query: "a"})
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestReindexHandler_IncrementalNoChanges(t *testing.T) {
	f := newServerFixture(t)

	_, out, err := f.server.reindexHandler(context.Background(), nil,
		ReindexInput{Folder: f.folder})
	require.NoError(t, err)
	assert.Equal(t, f.folder, out.Folder)
	assert.Zero(t, out.Indexed)
	assert.Zero(t, out.Failed)
}

func TestReindexHandler_FullRebuild(t *testing.T) {
	f := newServerFixture(t)

	_, out, err := f.server.reindexHandler(context.Background(), nil,
		ReindexInput{Folder: f.folder, Full: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Indexed)
}

func TestStatusHandler(t *testing.T) {
	f := newServerFixture(t)

	_, _, err := f.server.searchHandler(context.Background(), nil,
		SearchInput{Folder: f.folder, Query: "vendor spend"})
	require.NoError(t, err)

	_, out, err := f.server.statusHandler(context.Background(), nil,
		StatusInput{Folder: f.folder})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Indexed)
	assert.Zero(t, out.Failed)
	assert.Zero(t, out.Pending)
	assert.NotEmpty(t, out.ModelID)
	assert.Empty(t, out.Failures)

	require.NotNil(t, out.QueryMetrics)
	assert.Equal(t, int64(1), out.QueryMetrics.TotalQueries)

	// A new file on disk shows up as pending until the next run.
	require.NoError(t, os.WriteFile(filepath.Join(f.folder, "new-notes.md"),
		[]byte(testProse), 0o644))
	_, out, err = f.server.statusHandler(context.Background(), nil,
		StatusInput{Folder: f.folder})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Pending)
}
