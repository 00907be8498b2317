// Package fingerprint tracks per-folder file state so indexing runs only
// touch what changed. A snapshot maps relative paths to content hashes
// and is persisted as fingerprint.json inside the folder's index
// directory.
package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/folder-mcp/folder-mcp/internal/config"
)

// FileState is the recorded state of one indexed file.
type FileState struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
	Hash    string    `json:"hash"`
}

// Snapshot records the state of a folder at the end of an indexing run.
type Snapshot struct {
	Version   int                  `json:"version"`
	ModelID   string               `json:"model_id"`
	Dimension int                  `json:"dimension"`
	CreatedAt time.Time            `json:"created_at"`
	Files     map[string]FileState `json:"files"`
}

// NewSnapshot creates an empty snapshot for the given model.
func NewSnapshot(modelID string, dimension int) *Snapshot {
	return &Snapshot{
		Version:   1,
		ModelID:   modelID,
		Dimension: dimension,
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]FileState),
	}
}

// Diff is the change set between a stored snapshot and the folder's
// current on-disk state.
type Diff struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether the diff contains no changes.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// Total returns the number of changed paths.
func (d *Diff) Total() int {
	return len(d.Added) + len(d.Modified) + len(d.Removed)
}

// Load reads a snapshot from disk. A missing file yields an empty
// snapshot so first runs index everything.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot("", 0), nil
		}
		return nil, fmt.Errorf("failed to read fingerprint file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt fingerprint forces a full re-index rather than an
		// error loop.
		return NewSnapshot("", 0), nil
	}
	if snap.Files == nil {
		snap.Files = make(map[string]FileState)
	}
	return &snap, nil
}

// Save persists the snapshot atomically (temp file + rename).
func (s *Snapshot) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write fingerprint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit fingerprint: %w", err)
	}
	return nil
}

// ScanFailure is one file the scanner could not read. The pipeline
// records these as indexing failures so they surface in status.
type ScanFailure struct {
	Path string
	Err  error
}

// Scanner walks a folder and captures its current state.
type Scanner struct {
	cfg config.IndexConfig
}

// NewScanner creates a scanner bound to the given index configuration.
func NewScanner(cfg config.IndexConfig) *Scanner {
	return &Scanner{cfg: cfg}
}

// Scan walks the folder and returns its current snapshot. Files that
// match the filters but cannot be read are reported as failures rather
// than silently dropped.
func (s *Scanner) Scan(ctx context.Context, folder string) (*Snapshot, []ScanFailure, error) {
	absRoot, err := filepath.Abs(folder)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve folder: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("not a directory: %s", absRoot)
	}

	snap := NewSnapshot("", 0)
	var failures []ScanFailure

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if walkErr != nil {
			if d == nil || !d.IsDir() {
				if s.Indexable(relPath) {
					failures = append(failures, ScanFailure{Path: relPath, Err: walkErr})
				}
			}
			return nil
		}

		if d.IsDir() {
			if s.excludedDir(relPath, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !s.Indexable(relPath) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			failures = append(failures, ScanFailure{Path: relPath, Err: err})
			return nil
		}

		hash, err := HashFile(path, s.cfg.MaxHashBytes, s.cfg.PartialHashBytes)
		if err != nil {
			failures = append(failures, ScanFailure{Path: relPath, Err: err})
			return nil
		}

		snap.Files[relPath] = FileState{
			Size:    fi.Size(),
			ModTime: fi.ModTime().UTC(),
			Hash:    hash,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return snap, failures, nil
}

// Indexable reports whether a relative path passes the extension and
// ignore filters.
func (s *Scanner) Indexable(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	base := filepath.Base(relPath)

	for _, pattern := range s.cfg.IgnorePatterns {
		if matchPattern(relPath, base, pattern) {
			return false
		}
	}

	ext := strings.ToLower(filepath.Ext(relPath))
	for _, want := range s.cfg.IncludeExtensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func (s *Scanner) excludedDir(relPath, name string) bool {
	for _, pattern := range s.cfg.IgnorePatterns {
		if name == pattern || relPath == pattern {
			return true
		}
	}
	return false
}

// matchPattern supports the small pattern surface the ignore list uses:
// exact name, directory-prefix, and simple "*" globs on the base name.
func matchPattern(relPath, base, pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.ContainsAny(pattern, "*?[") {
		ok, err := filepath.Match(pattern, base)
		return err == nil && ok
	}
	if relPath == pattern || base == pattern {
		return true
	}
	return strings.HasPrefix(relPath, pattern+"/")
}

// DiffSnapshots compares a stored snapshot with the folder's current
// state. Modification is detected by hash; size and mtime are carried
// only for diagnostics.
func DiffSnapshots(stored, current *Snapshot) *Diff {
	d := &Diff{}

	for path, cur := range current.Files {
		old, ok := stored.Files[path]
		switch {
		case !ok:
			d.Added = append(d.Added, path)
		case old.Hash != cur.Hash:
			d.Modified = append(d.Modified, path)
		}
	}
	for path := range stored.Files {
		if _, ok := current.Files[path]; !ok {
			d.Removed = append(d.Removed, path)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Modified)
	sort.Strings(d.Removed)
	return d
}
