package store

import (
	"os"
	"path/filepath"
)

// IndexDirName is the per-folder index directory.
const IndexDirName = ".folder-mcp"

// Layout resolves the on-disk artifacts of one folder's index. The
// sqlite database is the ground truth; every other artifact can be
// rebuilt from it or from the source files.
type Layout struct {
	// Folder is the absolute path of the indexed folder.
	Folder string
}

// NewLayout creates a layout rooted at folder.
func NewLayout(folder string) Layout {
	abs, err := filepath.Abs(folder)
	if err != nil {
		abs = folder
	}
	return Layout{Folder: abs}
}

// Dir returns the index directory path.
func (l Layout) Dir() string { return filepath.Join(l.Folder, IndexDirName) }

// DatabasePath returns the sqlite database path.
func (l Layout) DatabasePath() string { return filepath.Join(l.Dir(), "index.db") }

// VectorsPath returns the HNSW index path (gob metadata sidecar lives
// at VectorsPath() + ".meta").
func (l Layout) VectorsPath() string { return filepath.Join(l.Dir(), "vectors.hnsw") }

// BlevePath returns the bleve keyword index directory.
func (l Layout) BlevePath() string { return filepath.Join(l.Dir(), "keywords.bleve") }

// FingerprintPath returns the fingerprint snapshot path.
func (l Layout) FingerprintPath() string { return filepath.Join(l.Dir(), "fingerprint.json") }

// FailureLogPath returns the JSON-lines failure log path.
func (l Layout) FailureLogPath() string { return filepath.Join(l.Dir(), "failures.log") }

// LockPath returns the cross-process pipeline lock path.
func (l Layout) LockPath() string { return filepath.Join(l.Dir(), "LOCK") }

// Ensure creates the index directory.
func (l Layout) Ensure() error {
	return os.MkdirAll(l.Dir(), 0o755)
}

// Exists reports whether the folder has an index directory.
func (l Layout) Exists() bool {
	info, err := os.Stat(l.Dir())
	return err == nil && info.IsDir()
}

// Purge removes the entire index directory.
func (l Layout) Purge() error {
	return os.RemoveAll(l.Dir())
}
