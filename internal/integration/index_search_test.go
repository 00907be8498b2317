// Package integration exercises the full flow from files on disk
// through indexing to retrieval answers, the way the MCP server and
// the CLI drive it.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folder-mcp/folder-mcp/internal/pipeline"
	"github.com/folder-mcp/folder-mcp/internal/retrieval"
)

const vendorProse = `# Vendor Contracts

The vendor contracts for this year cover hosting, payroll, and travel.
Every vendor contract renews in January, and the vendor contracts team
reviews payment terms before renewal. Late payment terms in a vendor
contract trigger an escalation to the finance director, so the vendor
contracts team tracks payment terms in a shared register.`

const hiringProse = `# Hiring Plan

The hiring plan lists open roles by team and by quarter. Engineering
leads the hiring plan with six open roles, while support adds two. The
hiring plan assumes the budget review approves the headcount request,
and every open role in the hiring plan names a hiring manager.`

const auditProse = `# Security Audit

The annual security audit follows the TMOAT checklist for access
reviews. Every finding in the security audit gets an owner and a due
date, and the security audit report goes to the board. The TMOAT
checklist covers credentials, backups, and vendor access paths.`

func writeDoc(t *testing.T, folder, rel, content string) {
	t.Helper()
	path := filepath.Join(folder, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// indexedFolder builds a three-document folder, indexes it, and returns
// the retrieval service over it.
func indexedFolder(t *testing.T) (*retrieval.Service, *pipeline.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	writeDoc(t, dir, "vendor-contracts.md", vendorProse)
	writeDoc(t, dir, "hiring-plan.md", hiringProse)
	writeDoc(t, dir, "archive/security-audit.md", auditProse)

	m := pipeline.NewManager(nil)
	t.Cleanup(func() { _ = m.Close() })

	eng, err := m.Add(dir)
	require.NoError(t, err)
	require.NoError(t, eng.Index(context.Background(), false))

	svc := retrieval.NewService(m, eng.Config(), nil)
	return svc, eng, eng.Folder()
}

func TestIndexThenNavigate(t *testing.T) {
	svc, _, folder := indexedFolder(t)
	ctx := context.Background()

	folders, err := svc.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, folder, folders[0].Path)
	assert.Equal(t, 3, folders[0].IndexedCount)
	assert.Zero(t, folders[0].FailedCount)
	assert.NotEmpty(t, folders[0].TopTopics)

	listing, err := svc.ListDocuments(ctx, folder, "")
	require.NoError(t, err)
	require.Len(t, listing.Documents, 2)
	assert.Contains(t, listing.Preview.Subfolders, "archive")

	ex, err := svc.Explore(ctx, folder, "")
	require.NoError(t, err)
	require.Len(t, ex.Subfolders, 1)
	assert.Equal(t, "archive", ex.Subfolders[0].Path)
	assert.Equal(t, 1, ex.Subfolders[0].DocumentCount)

	outline, err := svc.GetDocumentOutline(ctx, folder, "archive/security-audit.md")
	require.NoError(t, err)
	assert.NotEmpty(t, outline.PrimaryPurpose)
	assert.Greater(t, outline.ChunkCount, 0)
}

func TestIndexThenSearch(t *testing.T) {
	svc, _, folder := indexedFolder(t)

	answer, err := svc.Search(context.Background(), folder, "vendor contract payment terms", 10)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Results)
	assert.Equal(t, "vendor-contracts.md", answer.Results[0].DocumentPath)
	assert.NotEmpty(t, answer.Results[0].Snippet)
	assert.NotEmpty(t, answer.Results[0].Context.WhyRelevant)
	assert.NotEmpty(t, answer.Insights.QueryInterpretation)
}

func TestSearch_AcronymFoundByKeywordScan(t *testing.T) {
	svc, _, folder := indexedFolder(t)

	answer, err := svc.Search(context.Background(), folder, "TMOAT checklist findings", 10)
	require.NoError(t, err)
	assert.Contains(t, answer.Insights.PoorTokenizersDetected, "TMOAT")

	var foundAudit bool
	for _, r := range answer.Results {
		if r.DocumentPath == "archive/security-audit.md" {
			foundAudit = true
		}
	}
	assert.True(t, foundAudit, "document containing the acronym should surface")
}

func TestIncrementalReindex(t *testing.T) {
	svc, eng, folder := indexedFolder(t)
	ctx := context.Background()

	// Unchanged folder: nothing to do.
	events, cancel := eng.Subscribe()
	done := make(chan pipeline.Event, 1)
	go func() {
		for ev := range events {
			if ev.Type == pipeline.EventRunCompleted {
				done <- ev
			}
		}
	}()
	require.NoError(t, eng.Index(ctx, false))
	cancel()
	summary := <-done
	assert.Zero(t, summary.Indexed)
	assert.Zero(t, summary.Deleted)

	// New and deleted files picked up on the next run.
	writeDoc(t, folder, "travel-policy.md", `# Travel Policy

The travel policy caps hotel rates by city and requires approval for
international trips. Expense reports citing the travel policy are due
within two weeks, and the travel policy applies to contractors too.`)
	require.NoError(t, os.Remove(filepath.Join(folder, "hiring-plan.md")))
	require.NoError(t, eng.Index(ctx, false))

	listing, err := svc.ListDocuments(ctx, folder, "")
	require.NoError(t, err)

	var paths []string
	for _, d := range listing.Documents {
		paths = append(paths, d.Path)
	}
	assert.Contains(t, paths, "travel-policy.md")
	assert.NotContains(t, paths, "hiring-plan.md")
}

func TestManager_FoldersAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := pipeline.NewManager(nil)
	t.Cleanup(func() { _ = m.Close() })

	dirA := t.TempDir()
	writeDoc(t, dirA, "vendor-contracts.md", vendorProse)
	dirB := t.TempDir()
	writeDoc(t, dirB, "hiring-plan.md", hiringProse)

	engA, err := m.Add(dirA)
	require.NoError(t, err)
	require.NoError(t, engA.Index(ctx, false))
	engB, err := m.Add(dirB)
	require.NoError(t, err)
	require.NoError(t, engB.Index(ctx, false))

	svc := retrieval.NewService(m, engA.Config(), nil)

	answer, err := svc.Search(ctx, engB.Folder(), "vendor contract payment terms", 10)
	require.NoError(t, err)
	for _, r := range answer.Results {
		assert.NotEqual(t, "vendor-contracts.md", r.DocumentPath,
			"results must come from the searched folder only")
	}

	listing, err := svc.ListDocuments(ctx, engA.Folder(), "")
	require.NoError(t, err)
	require.Len(t, listing.Documents, 1)
	assert.Equal(t, "vendor-contracts.md", listing.Documents[0].Path)
}
