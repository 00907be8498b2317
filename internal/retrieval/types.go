// Package retrieval answers navigation and search requests against
// indexed folders. Answers come straight from the stored index; when a
// required semantic field is absent the operation fails loudly instead
// of papering over it with nulls.
package retrieval

import (
	"context"
	"time"

	"github.com/folder-mcp/folder-mcp/internal/aggregate"
	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/semantic"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

// Match types reported per search result.
const (
	MatchSemantic        = "semantic"
	MatchFilenameExact   = "filename_exact"
	MatchFilenamePartial = "filename_partial"
	MatchKeywordOnly     = "keyword_only"
)

// Search strategies reported in semantic_context.
const (
	StrategySemantic      = "semantic"
	StrategyHybridBoosted = "hybrid_boosted"
	StrategyKeywordOnly   = "keyword_only"
	StrategyFilenameBoost = "filename_boost"
)

// Source resolves folders for retrieval. The pipeline manager
// implements it.
type Source interface {
	// List returns the absolute paths of all registered folders.
	List() []string
	// Folder resolves a registered folder; unknown or unindexed folders
	// return ERR_403.
	Folder(path string) (*store.FolderStore, error)
	// Config returns the folder's effective configuration, so retrieval
	// honors per-folder model and scoring settings.
	Config(folder string) (*config.Config, error)
	// EmbedQuery embeds a query string in the folder's passage space.
	EmbedQuery(ctx context.Context, folder, query string) ([]float32, error)
}

// FolderSummary is one entry in the list_folders answer.
type FolderSummary struct {
	Path           string                   `json:"path"`
	DocumentCount  int                      `json:"document_count"`
	IndexedCount   int                      `json:"indexed_count"`
	FailedCount    int                      `json:"failed_count"`
	ModelID        string                   `json:"model_id"`
	LastUpdated    time.Time                `json:"last_updated"`
	TopTopics      []aggregate.TermCount    `json:"top_topics"`
	AvgReadability float64                  `json:"avg_readability"`
	Quality        aggregate.PreviewQuality `json:"quality"`
}

// DocumentQuality is the per-document quality block in listings.
type DocumentQuality struct {
	ExtractionConfidence float64 `json:"extraction_confidence"`
	PhraseRichness       float64 `json:"phrase_richness"`
	TopicSpecificity     float64 `json:"topic_specificity"`
}

// DocumentInfo is one document in a listing.
type DocumentInfo struct {
	Path           string                `json:"path"`
	Title          string                `json:"title"`
	Format         string                `json:"format"`
	Size           int64                 `json:"size"`
	Status         string                `json:"status"`
	FailureReason  string                `json:"failure_reason,omitempty"`
	PrimaryPurpose string                `json:"primary_purpose,omitempty"`
	DocumentType   string                `json:"document_type,omitempty"`
	TopTopics      []semantic.ScoredTerm `json:"top_topics,omitempty"`
	Readability    float64               `json:"readability,omitempty"`
	Quality        *DocumentQuality      `json:"quality,omitempty"`
}

// Listing is the list_documents answer for one subfolder.
type Listing struct {
	Preview   *aggregate.Preview `json:"preview"`
	Documents []DocumentInfo     `json:"documents"`
}

// Exploration is the explore answer: the requested folder's preview
// plus a preview per direct subfolder.
type Exploration struct {
	Preview    *aggregate.Preview   `json:"preview"`
	Documents  []DocumentInfo       `json:"documents"`
	Subfolders []*aggregate.Preview `json:"subfolders"`
}

// OutlineSection is one structural unit in a document outline.
// Semantic fields are absent only for chunks whose extraction failed.
type OutlineSection struct {
	ChunkIndex  int                   `json:"chunk_index"`
	Heading     string                `json:"heading,omitempty"`
	Page        int                   `json:"page,omitempty"`
	Sheet       string                `json:"sheet,omitempty"`
	Tokens      int                   `json:"tokens"`
	MainPoints  []semantic.ScoredTerm `json:"main_points,omitempty"`
	Topics      []semantic.ScoredTerm `json:"topics,omitempty"`
	KeyPhrases  []semantic.ScoredTerm `json:"key_phrases,omitempty"`
	HasExamples bool                  `json:"has_examples"`
	HasData     bool                  `json:"has_data"`
	Readability float64               `json:"readability"`
}

// Outline is the get_document_outline answer. Status carries the
// failed_quality marker for documents below the quality floor; their
// chunks are still served.
type Outline struct {
	Path           string                `json:"path"`
	Title          string                `json:"title"`
	Format         string                `json:"format"`
	Status         string                `json:"status"`
	FailureReason  string                `json:"failure_reason,omitempty"`
	DocumentType   string                `json:"document_type"`
	PrimaryPurpose string                `json:"primary_purpose"`
	TopTopics      []semantic.ScoredTerm `json:"top_topics"`
	TopPhrases     []semantic.ScoredTerm `json:"top_phrases"`
	AvgReadability float64               `json:"avg_readability"`
	ChunkCount     int                   `json:"chunk_count"`
	TotalTokens    int                   `json:"total_tokens"`
	Sections       []OutlineSection      `json:"sections"`
}

// SemanticContext explains one search result.
type SemanticContext struct {
	WhyRelevant     string   `json:"why_relevant"`
	MatchedConcepts []string `json:"matched_concepts"`
	SearchStrategy  string   `json:"search_strategy"`
	BoostApplied    float64  `json:"boost_applied,omitempty"`
	KeywordMatches  []string `json:"keyword_matches,omitempty"`
}

// SearchResult is one ranked hit.
type SearchResult struct {
	DocumentPath string          `json:"document_path"`
	Title        string          `json:"title"`
	ChunkIndex   int             `json:"chunk_index"`
	Snippet      string          `json:"snippet"`
	Score        float64         `json:"score"`
	MatchType    string          `json:"match_type"`
	Context      SemanticContext `json:"semantic_context"`
}

// SearchInsights is the query-level explanation attached to an answer.
type SearchInsights struct {
	QueryInterpretation   string   `json:"query_interpretation"`
	ModelOptimization     string   `json:"model_optimization"`
	PoorTokenizersDetected []string `json:"poor_tokenizers_detected,omitempty"`
	Confidence            float64  `json:"confidence"`
}

// SearchAnswer is the full search response.
type SearchAnswer struct {
	Results  []SearchResult `json:"results"`
	Insights SearchInsights `json:"search_insights"`
}
