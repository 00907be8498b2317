package embed

import (
	"context"

	"github.com/folder-mcp/folder-mcp/internal/config"
	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

// Service applies the model capability descriptor around a raw
// Embedder. Passage and query paths apply their respective prefixes
// before embedding and repeat L2 normalization after, so the vector
// index and queries live in exactly the same space.
type Service struct {
	embedder Embedder
	model    config.ModelConfig
}

// NewService wraps an embedder with the folder's model descriptor.
func NewService(embedder Embedder, model config.ModelConfig) *Service {
	return &Service{embedder: embedder, model: model}
}

// ModelID returns the wrapped model's id.
func (s *Service) ModelID() string { return s.embedder.ModelID() }

// Dimensions returns the vector width.
func (s *Service) Dimensions() int { return s.embedder.Dimensions() }

// Close releases the underlying session.
func (s *Service) Close() error { return s.embedder.Close() }

// EmbedPassages embeds document-side texts.
func (s *Service) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	prepared := texts
	if s.model.RequiresPrefix {
		prepared = make([]string, len(texts))
		for i, t := range texts {
			prepared[i] = s.model.PassagePrefix + t
		}
	}
	return s.embed(ctx, prepared, len(texts))
}

// EmbedQuery embeds a retrieval query.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.model.RequiresPrefix {
		query = s.model.QueryPrefix + query
	}
	vecs, err := s.embed(ctx, []string{query}, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *Service) embed(ctx context.Context, texts []string, want int) ([][]float32, error) {
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		if ferrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeEmbeddingFailed, err)
	}
	if len(vecs) != want {
		return nil, ferrors.Newf(ferrors.ErrCodeEmbeddingFailed,
			"embedder returned %d vectors for %d texts", len(vecs), want)
	}
	dim := s.embedder.Dimensions()
	for i, v := range vecs {
		if dim > 0 && len(v) != dim {
			return nil, ferrors.Newf(ferrors.ErrCodeDimensionMismatch,
				"vector %d has dimension %d, want %d", i, len(v), dim)
		}
		if s.model.RequiresNormalization {
			NormalizeInPlace(v)
		}
	}
	return vecs, nil
}
