package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/fingerprint"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

// FolderWatcher watches one folder recursively with fsnotify. Events
// that survive the include/ignore filters come out of Events as
// debounced batches.
type FolderWatcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	scanner   *fingerprint.Scanner
	logger    *slog.Logger

	events chan []FileEvent
	errs   chan error
	stopCh chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New creates a watcher for folder using its index configuration. The
// debounce window comes from the pipeline config (default 1s).
func New(folder string, cfg *config.Config, logger *slog.Logger) (*FolderWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	window := cfg.Pipeline.Debounce
	if window <= 0 {
		window = time.Second
	}

	return &FolderWatcher{
		root:      abs,
		fsWatcher: fsw,
		debouncer: NewDebouncer(window),
		scanner:   fingerprint.NewScanner(cfg.Index),
		logger:    logger.With(slog.String("folder", abs)),
		events:    make(chan []FileEvent, 64),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches until the context is cancelled or Stop is called.
func (w *FolderWatcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch folder tree: %w", err)
	}

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Events returns debounced event batches.
func (w *FolderWatcher) Events() <-chan []FileEvent { return w.events }

// Errors returns non-fatal watcher errors.
func (w *FolderWatcher) Errors() <-chan error { return w.errs }

// Stop releases the watcher. Safe to call twice.
func (w *FolderWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fsWatcher.Close()
	close(w.events)
	close(w.errs)
	return err
}

func (w *FolderWatcher) handle(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil || relPath == "." {
		return
	}
	relPath = filepath.ToSlash(relPath)

	if skipDir(relPath) {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			// New subtree: watch it and report its files, which arrived
			// before the watch existed.
			_ = w.addRecursive(event.Name)
			w.reportTree(event.Name)
			return
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		// Renames surface as delete here; the create half arrives as its
		// own event under the new name.
		op = OpDelete
	default:
		return // chmod and friends
	}

	if isDir {
		return
	}
	// Deletes cannot stat the file; filter on path alone.
	if !w.scanner.Indexable(relPath) {
		return
	}

	w.debouncer.Add(FileEvent{Path: relPath, Operation: op, Timestamp: time.Now()})
}

// reportTree emits create events for every indexable file already
// inside a newly created directory.
func (w *FolderWatcher) reportTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		relPath, rerr := filepath.Rel(w.root, path)
		if rerr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if !w.scanner.Indexable(relPath) {
			return nil
		}
		w.debouncer.Add(FileEvent{Path: relPath, Operation: OpCreate, Timestamp: time.Now()})
		return nil
	})
}

func (w *FolderWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *FolderWatcher) emit(batch []FileEvent) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped || len(batch) == 0 {
		return
	}
	select {
	case w.events <- batch:
	default:
		w.logger.Warn("watcher event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

func (w *FolderWatcher) emitError(err error) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	select {
	case w.errs <- err:
	default:
	}
}

func (w *FolderWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, rerr := filepath.Rel(w.root, path)
		if rerr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath != "." && skipDir(relPath) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// skipDir excludes the index directory and version control metadata
// from watching regardless of configuration.
func skipDir(relPath string) bool {
	return relPath == store.IndexDirName || strings.HasPrefix(relPath, store.IndexDirName+"/") ||
		relPath == ".git" || strings.HasPrefix(relPath, ".git/")
}
