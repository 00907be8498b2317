package embed

import (
	"context"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// StaticEmbedder is a deterministic, offline embedder. Each token maps
// to a hash-derived unit vector; a text embeds as the normalized sum of
// its token vectors, so texts sharing tokens land near each other. It
// exists for tests and degraded offline operation, not for semantic
// quality.
type StaticEmbedder struct {
	modelID string
	dim     int
}

// NewStaticEmbedder creates a static embedder. dim <= 0 defaults
// to 256.
func NewStaticEmbedder(modelID string, dim int) *StaticEmbedder {
	if dim <= 0 {
		dim = 256
	}
	if modelID == "" {
		modelID = "static-test"
	}
	return &StaticEmbedder{modelID: modelID, dim: dim}
}

func (e *StaticEmbedder) ModelID() string { return e.modelID }
func (e *StaticEmbedder) Dimensions() int { return e.dim }
func (e *StaticEmbedder) Close() error    { return nil }

func (e *StaticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vecs[i] = e.embedOne(text)
	}
	return vecs, nil
}

func (e *StaticEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		vec[0] = 1
		return vec
	}

	for _, tok := range tokens {
		seed := xxhash.Sum64String(tok)
		// Cheap splitmix-style stream seeded by the token hash.
		state := seed
		for d := 0; d < e.dim; d++ {
			state += 0x9e3779b97f4a7c15
			z := state
			z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
			z = (z ^ (z >> 27)) * 0x94d049bb133111eb
			z ^= z >> 31
			// Map to [-1, 1).
			vec[d] += float32(int64(z)) / float32(math.MaxInt64)
		}
	}
	NormalizeInPlace(vec)
	return vec
}

// tokenize lowercases and splits on non-alphanumeric runes, keeping
// hyphenated terms split so "BGE-M3" and "bge m3" share tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	return fields
}
