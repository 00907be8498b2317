// Package semantic extracts per-chunk topics, key phrases, and
// readability. Two interchangeable strategies exist: rich (lexical
// scoring, multi-word phrases) and similarity-only (candidate n-grams
// scored by embedding cosine against the chunk centroid). Selection
// follows the folder's model capability descriptor.
package semantic

import (
	"context"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

// ConfidenceFloor is the minimum extraction confidence; chunks below it
// are recorded as failed and counted against document coverage.
const ConfidenceFloor = 0.3

// Method tags which strategy produced a chunk's semantics.
type Method string

const (
	MethodRich           Method = "rich"
	MethodSimilarityOnly Method = "similarity_only"
	// MethodAggregationOnly marks summaries derived without per-chunk
	// extraction (filename chunks).
	MethodAggregationOnly Method = "aggregation_only"
)

// ScoredTerm is a topic or key phrase with its score.
type ScoredTerm struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// ChunkSemantics is the extraction result for one chunk.
type ChunkSemantics struct {
	// Topics ordered by descending score.
	Topics []ScoredTerm
	// KeyPhrases ordered by descending score.
	KeyPhrases []ScoredTerm
	// Readability on a 0-100 scale; technical prose lands near 40-60.
	Readability float64
	// Method is the strategy that produced this result.
	Method Method
	// Confidence in [0,1].
	Confidence float64
	// HasExamples marks chunks containing example markers.
	HasExamples bool
	// HasData marks chunks containing numeric tables or figures.
	HasData bool
}

// Extractor is one extraction strategy.
type Extractor interface {
	Method() Method
	Extract(ctx context.Context, text string) (*ChunkSemantics, error)
}

// EmbedFunc embeds a batch of texts. The similarity-only strategy uses
// it to score candidates; it must match the folder's passage space.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Extract runs the extractor and enforces the confidence floor.
func Extract(ctx context.Context, e Extractor, text string) (*ChunkSemantics, error) {
	sem, err := e.Extract(ctx, text)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeChunkSemantic, err)
	}
	if sem.Confidence < ConfidenceFloor {
		return nil, ferrors.Newf(ferrors.ErrCodeChunkSemantic,
			"extraction confidence %.2f below floor %.2f", sem.Confidence, ConfidenceFloor)
	}
	return sem, nil
}
