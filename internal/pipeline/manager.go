package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/folder-mcp/folder-mcp/internal/config"
	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

// Manager owns one engine per registered folder and implements the
// retrieval source.
type Manager struct {
	logger *slog.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, engines: make(map[string]*Engine)}
}

// Add registers a folder, loading its layered configuration. Already
// registered folders return their existing engine.
func (m *Manager) Add(folder string) (*Engine, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeConfigInvalid, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if eng, ok := m.engines[abs]; ok {
		return eng, nil
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	eng, err := NewEngine(abs, cfg, m.logger)
	if err != nil {
		return nil, err
	}
	m.engines[abs] = eng
	return eng, nil
}

// Remove unregisters a folder and closes its engine. The on-disk index
// stays.
func (m *Manager) Remove(folder string) error {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return err
	}

	m.mu.Lock()
	eng, ok := m.engines[abs]
	delete(m.engines, abs)
	m.mu.Unlock()

	if !ok {
		return ferrors.Newf(ferrors.ErrCodeFolderNotIndexed, "folder %s is not registered", folder)
	}
	return eng.Close()
}

// Engine resolves a registered folder's engine.
func (m *Manager) Engine(folder string) (*Engine, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeFolderNotIndexed, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[abs]
	if !ok {
		return nil, ferrors.Newf(ferrors.ErrCodeFolderNotIndexed, "folder %s is not indexed", folder)
	}
	return eng, nil
}

// List returns registered folder paths in stable order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.engines))
	for path := range m.engines {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Folder implements the retrieval source.
func (m *Manager) Folder(path string) (*store.FolderStore, error) {
	eng, err := m.Engine(path)
	if err != nil {
		return nil, err
	}
	return eng.Store(), nil
}

// Config implements the retrieval source with the folder's layered
// configuration.
func (m *Manager) Config(folder string) (*config.Config, error) {
	eng, err := m.Engine(folder)
	if err != nil {
		return nil, err
	}
	return eng.Config(), nil
}

// EmbedQuery implements the retrieval source using the folder's model.
func (m *Manager) EmbedQuery(ctx context.Context, folder, query string) ([]float32, error) {
	eng, err := m.Engine(folder)
	if err != nil {
		return nil, err
	}
	return eng.Service().EmbedQuery(ctx, query)
}

// Close closes every engine.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for path, eng := range m.engines {
		if err := eng.Close(); err != nil && first == nil {
			first = err
		}
		delete(m.engines, path)
	}
	return first
}
