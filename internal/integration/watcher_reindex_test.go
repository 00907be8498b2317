package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/pipeline"
	"github.com/folder-mcp/folder-mcp/internal/retrieval"
	"github.com/folder-mcp/folder-mcp/internal/watcher"
)

// waitBatch receives one debounced batch or fails the test.
func waitBatch(t *testing.T, w *watcher.FolderWatcher) []watcher.FileEvent {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher batch")
		return nil
	}
}

func TestWatcherDrivesIncrementalReindex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeDoc(t, dir, "vendor-contracts.md", vendorProse)

	m := pipeline.NewManager(nil)
	t.Cleanup(func() { _ = m.Close() })
	eng, err := m.Add(dir)
	require.NoError(t, err)
	require.NoError(t, eng.Index(ctx, false))

	cfg := config.New()
	cfg.Pipeline.Debounce = 50 * time.Millisecond
	w, err := watcher.New(dir, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	go func() { _ = w.Start(ctx) }()

	// Give the recursive watch a moment to attach before writing.
	time.Sleep(200 * time.Millisecond)

	writeDoc(t, dir, "hiring-plan.md", hiringProse)
	batch := waitBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "hiring-plan.md", batch[0].Path)

	// The batch is a wake-up signal; the engine diffs on its own.
	require.NoError(t, eng.Index(ctx, false))

	svc := retrieval.NewService(m, eng.Config(), nil)
	listing, err := svc.ListDocuments(ctx, eng.Folder(), "")
	require.NoError(t, err)
	assert.Len(t, listing.Documents, 2)
}

func TestWatcherReportsDeletes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeDoc(t, dir, "vendor-contracts.md", vendorProse)
	writeDoc(t, dir, "hiring-plan.md", hiringProse)

	m := pipeline.NewManager(nil)
	t.Cleanup(func() { _ = m.Close() })
	eng, err := m.Add(dir)
	require.NoError(t, err)
	require.NoError(t, eng.Index(ctx, false))

	cfg := config.New()
	cfg.Pipeline.Debounce = 50 * time.Millisecond
	w, err := watcher.New(dir, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	go func() { _ = w.Start(ctx) }()
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "hiring-plan.md")))
	batch := waitBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, watcher.OpDelete, batch[0].Operation)

	require.NoError(t, eng.Index(ctx, false))

	svc := retrieval.NewService(m, eng.Config(), nil)
	listing, err := svc.ListDocuments(ctx, eng.Folder(), "")
	require.NoError(t, err)
	require.Len(t, listing.Documents, 1)
	assert.Equal(t, "vendor-contracts.md", listing.Documents[0].Path)
}

func TestWatcherIgnoresIndexDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeDoc(t, dir, "vendor-contracts.md", vendorProse)

	m := pipeline.NewManager(nil)
	t.Cleanup(func() { _ = m.Close() })
	eng, err := m.Add(dir)
	require.NoError(t, err)
	require.NoError(t, eng.Index(ctx, false))

	cfg := config.New()
	cfg.Pipeline.Debounce = 50 * time.Millisecond
	w, err := watcher.New(dir, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	go func() { _ = w.Start(ctx) }()
	time.Sleep(200 * time.Millisecond)

	// Index writes must not wake the watcher, or serving would loop.
	require.NoError(t, eng.Index(ctx, true))

	select {
	case batch := <-w.Events():
		t.Fatalf("unexpected batch from index directory writes: %v", batch)
	case <-time.After(500 * time.Millisecond):
	}
}
