// Package store persists one folder's index: document and chunk rows
// in sqlite (ground truth), vectors in an HNSW graph with a gob
// metadata sidecar, and a pluggable keyword index (sqlite FTS5 or
// bleve). FolderStore composes the three behind atomic per-document
// operations.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/folder-mcp/folder-mcp/internal/semantic"
)

// FilenameChunkIndex mirrors the chunker's reserved filename index.
const FilenameChunkIndex = -1

// ParseStatus values for documents.
const (
	StatusOK            = "ok"
	StatusFailed        = "failed"
	StatusSkipped       = "skipped"
	StatusFailedQuality = "failed_quality"
)

// Document is one indexed file with its semantic summary.
type Document struct {
	// ID is derived from the folder-relative path.
	ID string
	// Path is folder-relative with forward slashes.
	Path string
	// Title is the document title (first heading or filename).
	Title string
	// Format is the normalized extension ("pdf", "md").
	Format string
	// Size is the source file size in bytes.
	Size int64
	// ContentHash versions the document.
	ContentHash string
	// Status is one of the ParseStatus values.
	Status string
	// FailureReason explains failed / failed_quality.
	FailureReason string
	// Summary is present iff Status is ok or failed_quality.
	Summary *DocumentSummary
	// ProcessedAt is the last pipeline commit time.
	ProcessedAt time.Time
}

// DocumentSummary is the derived document-level semantic roll-up.
type DocumentSummary struct {
	// PrimaryPurpose is the top-ranked topic; ties break
	// lexicographically.
	PrimaryPurpose string
	// DocumentType derives from structural hints ("report",
	// "spreadsheet", "guide", "notes").
	DocumentType string
	// TopTopics ranked by merged score.
	TopTopics []semantic.ScoredTerm
	// TopPhrases ranked by merged score.
	TopPhrases []semantic.ScoredTerm
	// AvgReadability on the 0-100 scale.
	AvgReadability float64
	// TopicDiversity is the Shannon entropy of topic frequencies.
	TopicDiversity float64
	// PhraseRichness is the multi-word share of TopPhrases.
	PhraseRichness float64
	// Coherence is the mean pairwise cosine between chunk embeddings.
	Coherence float64
	// Coverage is the fraction of chunks with successful semantics.
	Coverage float64
	// Confidence is the chunk-length-weighted mean confidence.
	Confidence float64
	// Method is the extraction method that produced the chunks.
	Method semantic.Method
	// ProcessingMS is the wall-clock pipeline time for this document.
	ProcessingMS int64
}

// Chunk is one stored chunk with its semantics and embedding.
type Chunk struct {
	DocumentID string
	// Index is 0-based; FilenameChunkIndex marks the filename chunk.
	Index int
	Text  string
	// Tokens is the whitespace token count.
	Tokens int
	// StartOffset/EndOffset are byte offsets into the document text.
	// Both are zero for the filename chunk, which has no span.
	StartOffset int
	EndOffset   int
	Heading     string
	Page        int
	Sheet       string

	// Semantics is nil when extraction failed for this chunk.
	Semantics *semantic.ChunkSemantics
	// Embedding is nil when embedding failed; such chunks are excluded
	// from the vector index.
	Embedding []float32
}

// VectorID encodes a chunk reference for the vector index.
func (c *Chunk) VectorID() string {
	return ChunkVectorID(c.DocumentID, c.Index)
}

// IsFilename reports whether this is the synthetic filename chunk.
func (c *Chunk) IsFilename() bool { return c.Index == FilenameChunkIndex }

// ChunkVectorID encodes (document, index) as a vector index key.
func ChunkVectorID(docID string, index int) string {
	return docID + "#" + strconv.Itoa(index)
}

// ParseVectorID decodes a vector index key.
func ParseVectorID(id string) (docID string, index int, err error) {
	pos := strings.LastIndexByte(id, '#')
	if pos < 0 {
		return "", 0, fmt.Errorf("malformed vector id %q", id)
	}
	index, err = strconv.Atoi(id[pos+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed vector id %q: %w", id, err)
	}
	return id[:pos], index, nil
}

// DocumentID derives the stable id for a folder-relative path.
func DocumentID(relPath string) string {
	return strings.ToLower(strings.ReplaceAll(relPath, "\\", "/"))
}

// VectorHit is one vector search result.
type VectorHit struct {
	DocumentID string
	ChunkIndex int
	// Score is cosine similarity in [-1, 1].
	Score float64
	// IsFilename marks hits on filename chunks.
	IsFilename bool
}

// KeywordHit is one keyword scan result.
type KeywordHit struct {
	DocumentID string
	ChunkIndex int
	// Term is the query term that matched.
	Term string
}

// KeywordEntry is the indexable unit for keyword backends.
type KeywordEntry struct {
	DocumentID string
	ChunkIndex int
	Text       string
}

// KeywordIndex is the pluggable exact-term index. Implementations:
// sqlite FTS5 (default) and bleve.
type KeywordIndex interface {
	// Index replaces all entries of the documents present in entries.
	Index(ctx context.Context, entries []KeywordEntry) error
	// DeleteDocument removes all entries of a document.
	DeleteDocument(ctx context.Context, docID string) error
	// Scan returns chunks containing term as an exact word or substring
	// token match, case-insensitive.
	Scan(ctx context.Context, term string) ([]KeywordHit, error)
	Close() error
}

// FailureScope classifies failure records by pipeline stage.
type FailureScope string

const (
	ScopeParse     FailureScope = "parse"
	ScopeSemantic  FailureScope = "chunk_semantic"
	ScopeEmbedding FailureScope = "embedding"
	ScopeAggregate FailureScope = "aggregate"
	ScopeStorage   FailureScope = "storage"
)

// Failure is one persisted failure record.
type Failure struct {
	Scope      FailureScope
	DocumentID string
	ChunkIndex int // -2 when document-scoped
	Path       string
	Code       string
	Message    string
	Attempts   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocScopedChunk marks document-scoped failure records.
const DocScopedChunk = -2

// StatusCounts summarizes a folder's index state.
type StatusCounts struct {
	Indexed     int       `json:"indexed"`
	Failed      int       `json:"failed"`
	Pending     int       `json:"pending"`
	ModelID     string    `json:"model_id"`
	Dimensions  int       `json:"dimensions"`
	LastUpdated time.Time `json:"last_updated"`
}
