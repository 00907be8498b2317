package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folder-mcp/folder-mcp/internal/config"
)

func TestDebouncer_CoalescesSamePath(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "a.md", Operation: OpModify})
	d.Add(FileEvent{Path: "a.md", Operation: OpModify})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpCreate, batch[0].Operation)
	case <-time.After(time.Second):
		t.Fatal("no batch emitted")
	}
}

func TestDebouncer_CreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "tmp.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "tmp.md", Operation: OpDelete})
	d.Add(FileEvent{Path: "keep.md", Operation: OpModify})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, "keep.md", batch[0].Path)
	case <-time.After(time.Second):
		t.Fatal("no batch emitted")
	}
}

func TestDebouncer_DeleteThenCreateBecomesModify(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.md", Operation: OpDelete})
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(time.Second):
		t.Fatal("no batch emitted")
	}
}

func watcherFixture(t *testing.T) (string, *FolderWatcher) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New()
	cfg.Pipeline.Debounce = 50 * time.Millisecond

	w, err := New(dir, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() { _ = w.Stop() })

	// Give the walk a moment to register watches.
	time.Sleep(100 * time.Millisecond)
	return dir, w
}

func waitBatch(t *testing.T, w *FolderWatcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no event batch")
		return nil
	}
}

func TestFolderWatcher_ReportsIndexableFiles(t *testing.T) {
	dir, w := watcherFixture(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("hello"), 0o644))

	batch := waitBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "note.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestFolderWatcher_IgnoresNonIndexable(t *testing.T) {
	dir, w := watcherFixture(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "binary.bin"), []byte{0, 1, 2}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.txt"), []byte("text"), 0o644))

	batch := waitBatch(t, w)
	for _, ev := range batch {
		assert.NotEqual(t, "binary.bin", ev.Path)
	}
}

func TestFolderWatcher_IgnoresIndexDirectory(t *testing.T) {
	dir, w := watcherFixture(t)

	idx := filepath.Join(dir, ".folder-mcp")
	require.NoError(t, os.MkdirAll(idx, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(idx, "scratch.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seen.md"), []byte("x"), 0o644))

	batch := waitBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "seen.md", batch[0].Path)
}

func TestFolderWatcher_DeleteReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	cfg := config.New()
	cfg.Pipeline.Debounce = 50 * time.Millisecond
	w, err := New(dir, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	defer func() { _ = w.Stop() }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Remove(path))

	batch := waitBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "gone.md", batch[0].Path)
	assert.Equal(t, OpDelete, batch[0].Operation)
}
