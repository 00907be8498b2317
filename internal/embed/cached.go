package embed

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultQueryCacheSize bounds the query embedding cache. Queries are
// short and repeat heavily in interactive sessions.
const defaultQueryCacheSize = 512

// CachedEmbedder memoizes Embed results for single-text calls. Batch
// calls pass through uncached; the pipeline embeds each chunk once
// anyway.
type CachedEmbedder struct {
	inner Embedder

	mu    sync.Mutex
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps an embedder with an LRU cache. size <= 0
// uses the default.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = defaultQueryCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (e *CachedEmbedder) ModelID() string { return e.inner.ModelID() }
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }
func (e *CachedEmbedder) Close() error    { return e.inner.Close() }

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return e.inner.Embed(ctx, texts)
	}

	key := texts[0]
	e.mu.Lock()
	cached, ok := e.cache.Get(key)
	e.mu.Unlock()
	if ok {
		// Copy: callers may normalize in place.
		out := make([]float32, len(cached))
		copy(out, cached)
		return [][]float32{out}, nil
	}

	vecs, err := e.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 1 {
		stored := make([]float32, len(vecs[0]))
		copy(stored, vecs[0])
		e.mu.Lock()
		e.cache.Add(key, stored)
		e.mu.Unlock()
	}
	return vecs, nil
}
