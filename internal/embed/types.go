// Package embed turns text into vectors. An Embedder is the raw model
// session; Service wraps one with the folder's model capability
// descriptor (prefixes, normalization) so index and query vectors share
// the same space; Pool runs bounded concurrent batch embedding with
// retry.
package embed

import (
	"context"
	"math"
)

// Embedder is a raw embedding session. Implementations must be
// idempotent and side-effect free per call.
type Embedder interface {
	// ModelID identifies the loaded model.
	ModelID() string
	// Dimensions is the vector width.
	Dimensions() int
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Close releases the session.
	Close() error
}

// NormalizeInPlace L2-normalizes the vector. Zero vectors are left
// untouched.
func NormalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Cosine computes cosine similarity. On L2-normalized inputs this is
// the inner product.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
