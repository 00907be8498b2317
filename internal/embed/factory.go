package embed

import (
	"fmt"

	"github.com/folder-mcp/folder-mcp/internal/config"
)

// NewFromConfig builds the embedding service for a folder. A configured
// endpoint selects the HTTP embedder, with threads bounding the
// service's CPU use per request; otherwise the deterministic static
// embedder serves tests and offline operation. Query embeddings go
// through an LRU cache.
func NewFromConfig(model config.ModelConfig, threads int) (*Service, error) {
	var embedder Embedder
	if model.Endpoint != "" {
		embedder = NewHTTPEmbedder(model.Endpoint, model.ID, model.Dimensions, threads)
	} else {
		embedder = NewStaticEmbedder(model.ID, model.Dimensions)
	}

	cached, err := NewCachedEmbedder(embedder, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return NewService(cached, model), nil
}
