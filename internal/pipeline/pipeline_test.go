package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folder-mcp/folder-mcp/internal/config"
	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

// richProse repeats multi-word phrases so extraction clears the
// quality floor.
const richProse = `The embedding pipeline batches chunk text before the worker pool embeds it.
The worker pool holds two long-lived sessions, and the embedding pipeline feeds each
session one batch at a time. When a batch fails, the worker pool retries the batch
with exponential backoff. The retry policy protects the embedding pipeline from
transient failures in the local inference runtime. Sentence boundaries guide the
chunk text splitter, so the embedding pipeline never cuts a sentence in half.`

func testEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	cfg := config.New()
	cfg.Model.Dimensions = 32

	eng, err := NewEngine(dir, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestEngine_IndexesFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pipeline.md", "# Embedding Pipeline\n\n"+richProse)
	writeFile(t, dir, "notes/workers.txt", richProse)

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	docs, err := eng.Store().SQL().ListDocuments(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Equal(t, store.StatusOK, doc.Status, doc.Path)
		require.NotNil(t, doc.Summary, doc.Path)
		assert.NotEmpty(t, doc.Summary.PrimaryPurpose)
	}

	// Filename chunk plus at least one content chunk per document.
	chunks, err := eng.Store().SQL().ListChunks(ctx, store.DocumentID("pipeline.md"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, store.FilenameChunkIndex, chunks[0].Index)
	assert.NotNil(t, chunks[0].Embedding)

	// Model identity is recorded for the next run's validation.
	modelID, dim, err := eng.Store().ModelIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e5-large-v2", modelID)
	assert.Equal(t, 32, dim)
}

func TestEngine_IncrementalRunSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", richProse)

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	events, cancel := eng.Subscribe()
	defer cancel()
	require.NoError(t, eng.Index(ctx, false))

	done := false
	for !done {
		select {
		case ev := <-events:
			assert.NotEqual(t, EventFileIndexed, ev.Type, "unchanged file was reprocessed")
			if ev.Type == EventRunCompleted {
				assert.Zero(t, ev.Indexed)
				done = true
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no run_completed event")
		}
	}
}

func TestEngine_ModifiedFileReindexed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", richProse)

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	writeFile(t, dir, "a.md", richProse+"\n\nA new closing paragraph about the embedding pipeline.")
	require.NoError(t, eng.Index(ctx, false))

	doc, err := eng.Store().SQL().GetDocument(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOK, doc.Status)

	chunks, err := eng.Store().SQL().ListChunks(ctx, "a.md")
	require.NoError(t, err)
	found := false
	for _, ch := range chunks {
		if ch.Index >= 0 && containsText(ch.Text, "closing paragraph") {
			found = true
		}
	}
	assert.True(t, found, "re-indexed content missing")
}

func TestEngine_DeletedFileRemoved(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", richProse)
	writeFile(t, dir, "b.md", richProse)

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))
	require.NoError(t, os.Remove(filepath.Join(dir, "b.md")))
	require.NoError(t, eng.Index(ctx, false))

	docs, err := eng.Store().SQL().ListDocuments(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.md", docs[0].Path)
}

func TestEngine_BinaryMasqueradeRecordedAsFailed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fake.txt", "PK\x03\x04\x00\x00binary payload\x00\x00")

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	doc, err := eng.Store().SQL().GetDocument(ctx, "fake.txt")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.FailureReason)

	failures, err := eng.Store().SQL().ListFailures(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, failures)
	assert.Equal(t, "fake.txt", failures[0].Path)

	records, err := eng.failLog.Read()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, ferrors.ErrCodeSkippedBinary, records[0].Code)
}

func TestEngine_FailedFileNotRetriedWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fake.txt", "\x00\x00\x00 not text")

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	events, cancel := eng.Subscribe()
	defer cancel()
	require.NoError(t, eng.Index(ctx, false))

	for {
		select {
		case ev := <-events:
			assert.NotEqual(t, EventFileFailed, ev.Type, "unchanged failed file was retried")
			if ev.Type == EventRunCompleted {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no run_completed event")
		}
	}
}

func TestManager_RegistersAndServesFolders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", richProse)

	m := NewManager(nil)
	t.Cleanup(func() { _ = m.Close() })

	eng, err := m.Add(dir)
	require.NoError(t, err)
	require.NoError(t, eng.Index(context.Background(), false))

	abs, _ := filepath.Abs(dir)
	assert.Equal(t, []string{abs}, m.List())

	fs, err := m.Folder(dir)
	require.NoError(t, err)
	counts, err := fs.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Indexed)

	vec, err := m.EmbedQuery(context.Background(), dir, "worker pool retries")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)

	_, err = m.Folder(filepath.Join(dir, "not-registered"))
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeFolderNotIndexed, ferrors.GetCode(err))

	require.NoError(t, m.Remove(dir))
	assert.Empty(t, m.List())
}

func containsText(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

// junkProse is single-word sentences only: extraction finds no
// multi-word phrases, so the document lands under the quality floor.
const junkProse = "Alpha. Beta. Gamma. Delta. Epsilon. Zeta. Eta. Theta. Iota. Kappa."

func TestEngine_ContentChunksGetSemanticsAndEmbeddings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", richProse)

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	chunks, err := eng.Store().SQL().ListChunks(ctx, "doc.md")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.NotNil(t, ch.Embedding, "chunk %d has no embedding", ch.Index)
		if !ch.IsFilename() {
			assert.NotNil(t, ch.Semantics, "chunk %d has no semantics", ch.Index)
		}
	}
}

func TestEngine_QualityFloorCommitsWhenNoPriorVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "junk.md", junkProse)

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	doc, err := eng.Store().SQL().GetDocument(ctx, "junk.md")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailedQuality, doc.Status)
	assert.NotEmpty(t, doc.FailureReason)

	// Chunks are committed so the outline can still serve them.
	chunks, err := eng.Store().SQL().ListChunks(ctx, "junk.md")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestEngine_QualityFloorKeepsPriorGoodVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", richProse)

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	writeFile(t, dir, "a.md", junkProse)
	require.NoError(t, eng.Index(ctx, false))

	// The rejected update never replaces the stored version.
	doc, err := eng.Store().SQL().GetDocument(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOK, doc.Status)
	require.NotNil(t, doc.Summary)

	chunks, err := eng.Store().SQL().ListChunks(ctx, "a.md")
	require.NoError(t, err)
	found := false
	for _, ch := range chunks {
		if containsText(ch.Text, "embedding pipeline") {
			found = true
		}
	}
	assert.True(t, found, "prior version's chunks were replaced")

	// The rejection is still recorded as a failure.
	failures, err := eng.Store().SQL().ListFailures(ctx)
	require.NoError(t, err)
	aggregated := false
	for _, f := range failures {
		if f.Scope == store.ScopeAggregate && f.Path == "a.md" {
			aggregated = true
		}
	}
	assert.True(t, aggregated, "no aggregate failure record for the rejected update")
}

func TestEngine_CancelDuringEmbeddingCommitsNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", richProse)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first embedding request aborts the run; later requests (the
	// follow-up run) answer normally.
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			cancel()
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := struct {
			Vectors   [][]float32 `json:"vectors"`
			Dimension int         `json:"dimension"`
		}{Dimension: 32}
		for range req.Texts {
			vec := make([]float32, 32)
			vec[0] = 1
			resp.Vectors = append(resp.Vectors, vec)
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	cfg := config.New()
	cfg.Model.Endpoint = srv.URL
	cfg.Model.Dimensions = 32

	eng, err := NewEngine(dir, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	err = eng.Index(ctx, false)
	require.Error(t, err)

	// The interrupted file left no rows behind.
	_, err = eng.Store().SQL().GetDocument(context.Background(), "doc.md")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// The next run picks the file up again and converges.
	require.NoError(t, eng.Index(context.Background(), false))
	doc, err := eng.Store().SQL().GetDocument(context.Background(), "doc.md")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOK, doc.Status)
}

func TestEngine_StatusReportsPending(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", richProse)

	eng := testEngine(t, dir)
	ctx := context.Background()

	counts, err := eng.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pending)

	require.NoError(t, eng.Index(ctx, false))
	counts, err = eng.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Pending)
	assert.Equal(t, 1, counts.Indexed)

	writeFile(t, dir, "b.md", richProse)
	counts, err = eng.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pending)
}

func TestEngine_UnreadableFileRecordedAsFailed(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "open.md", richProse)
	writeFile(t, dir, "secret.md", richProse)
	locked := filepath.Join(dir, "secret.md")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	eng := testEngine(t, dir)
	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, false))

	doc, err := eng.Store().SQL().GetDocument(ctx, "secret.md")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, doc.Status)

	failures, err := eng.Store().SQL().ListFailures(ctx)
	require.NoError(t, err)
	recorded := false
	for _, f := range failures {
		if f.Path == "secret.md" {
			recorded = true
			assert.Equal(t, ferrors.ErrCodeFileUnreadable, f.Code)
		}
	}
	assert.True(t, recorded, "unreadable file left no failure record")
}
