package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/folder-mcp/folder-mcp/internal/store"
)

// MarkerFile records that a folder's preflight checks passed. It lives
// next to the index files so deleting the index also clears it.
const MarkerFile = ".preflight-passed"

func markerPath(folder string) string {
	return filepath.Join(folder, store.IndexDirName, MarkerFile)
}

// NeedsCheck reports whether preflight checks should run for folder.
func NeedsCheck(folder string) bool {
	_, err := os.Stat(markerPath(folder))
	return os.IsNotExist(err)
}

// MarkPassed records a successful preflight run for folder.
func MarkPassed(folder string) error {
	dir := filepath.Join(folder, store.IndexDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	content := []byte(time.Now().Format(time.RFC3339))
	return os.WriteFile(markerPath(folder), content, 0o644)
}

// ClearMarker forces a re-check on the next run.
func ClearMarker(folder string) error {
	err := os.Remove(markerPath(folder))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago checks passed, zero if never.
func MarkerAge(folder string) time.Duration {
	content, err := os.ReadFile(markerPath(folder))
	if err != nil {
		return 0
	}
	t, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0
	}
	return time.Since(t)
}
