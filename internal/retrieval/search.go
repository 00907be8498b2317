package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/folder-mcp/folder-mcp/internal/config"
	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

const (
	minQueryLen = 2
	maxQueryLen = 500

	defaultLimit = 10
	maxLimit     = 50

	snippetLen = 240
)

// candidate is one chunk under consideration during ranking.
type candidate struct {
	docID      string
	chunkIndex int
	score      float64
	matchType  string
	boost      float64
	keywords   []string
}

// Search runs the hybrid pipeline: vector search over content and
// filename chunks, filename boosting, then an exact keyword pass for
// terms the embedding tokenizer handles poorly.
func (s *Service) Search(ctx context.Context, folder, query string, limit int) (*SearchAnswer, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLen {
		return nil, ferrors.Newf(ferrors.ErrCodeQueryTooShort,
			"query must be at least %d characters", minQueryLen)
	}
	if utf8.RuneCountInString(query) > maxQueryLen {
		return nil, ferrors.Newf(ferrors.ErrCodeQueryTooLong,
			"query must be at most %d characters", maxQueryLen)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	fs, err := s.source.Folder(folder)
	if err != nil {
		return nil, err
	}
	cfg := s.folderConfig(folder)

	poorTerms := PoorTokenizerTerms(query)
	insights := SearchInsights{
		QueryInterpretation:    interpretQuery(query, poorTerms),
		ModelOptimization:      fmt.Sprintf("query embedded with %s prefix conventions", cfg.Model.ID),
		PoorTokenizersDetected: poorTerms,
	}

	// An indexed but empty folder answers with zero results, not an
	// error.
	if fs.VectorCount() == 0 && len(poorTerms) == 0 {
		return &SearchAnswer{Insights: insights}, nil
	}

	vec, err := s.source.EmbedQuery(ctx, folder, query)
	if err != nil {
		return nil, err
	}

	hits, err := fs.VectorSearch(vec, limit*3)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}

	cands := rankCandidates(cfg, hits)
	cands, err = applyKeywordBoost(ctx, fs, cfg, cands, poorTerms)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > limit {
		cands = cands[:limit]
	}

	results, err := s.materialize(ctx, fs, query, cands)
	if err != nil {
		return nil, err
	}

	insights.Confidence = answerConfidence(results)
	return &SearchAnswer{Results: results, Insights: insights}, nil
}

// rankCandidates folds raw vector hits into per-chunk candidates and
// applies the filename boost. A filename hit promotes its document's
// best content chunk; the filename chunk itself is never a result.
func rankCandidates(cfg *config.Config, hits []store.VectorHit) []candidate {
	bestContent := make(map[string]*candidate) // per document
	var order []string

	for _, h := range hits {
		if h.IsFilename {
			continue
		}
		key := store.ChunkVectorID(h.DocumentID, h.ChunkIndex)
		bestContent[key] = &candidate{
			docID:      h.DocumentID,
			chunkIndex: h.ChunkIndex,
			score:      h.Score,
			matchType:  MatchSemantic,
		}
		order = append(order, key)
	}

	// Track the top content score per document for the boost formula.
	topByDoc := make(map[string]*candidate)
	for _, key := range order {
		c := bestContent[key]
		if top, ok := topByDoc[c.docID]; !ok || c.score > top.score {
			topByDoc[c.docID] = c
		}
	}

	for _, h := range hits {
		if !h.IsFilename {
			continue
		}
		sim := h.Score
		if sim < cfg.Retrieval.FilenamePartialThreshold {
			continue
		}

		top := topByDoc[h.DocumentID]
		var contentScore float64
		if top != nil {
			contentScore = top.score
		}

		var final float64
		var matchType string
		if sim >= cfg.Retrieval.FilenameExactThreshold {
			final = 0.4*(sim*1.5) + 0.6*contentScore
			matchType = MatchFilenameExact
		} else {
			final = 0.3*sim + 0.7*contentScore
			matchType = MatchFilenamePartial
		}
		if final > 1 {
			final = 1
		}

		if top != nil {
			if final > top.score {
				top.score = final
				top.matchType = matchType
				top.boost = sim
			}
			continue
		}
		// Filename matched but no content chunk surfaced; return the
		// document's first chunk as the anchor.
		key := store.ChunkVectorID(h.DocumentID, 0)
		if _, ok := bestContent[key]; !ok {
			c := &candidate{
				docID:      h.DocumentID,
				chunkIndex: 0,
				score:      final,
				matchType:  matchType,
				boost:      sim,
			}
			bestContent[key] = c
			order = append(order, key)
			topByDoc[h.DocumentID] = c
		}
	}

	out := make([]candidate, 0, len(order))
	for _, key := range order {
		out = append(out, *bestContent[key])
	}
	return out
}

// applyKeywordBoost multiplies scores of chunks that contain a
// poor-tokenizer term exactly, and surfaces keyword-only chunks the
// vector search missed at a fixed score.
func applyKeywordBoost(ctx context.Context, fs *store.FolderStore, cfg *config.Config, cands []candidate, terms []string) ([]candidate, error) {
	if len(terms) == 0 {
		return cands, nil
	}

	byKey := make(map[string]int, len(cands))
	for i, c := range cands {
		byKey[store.ChunkVectorID(c.docID, c.chunkIndex)] = i
	}

	for _, term := range terms {
		hits, err := fs.KeywordScan(ctx, term)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
		}
		for _, h := range hits {
			key := store.ChunkVectorID(h.DocumentID, h.ChunkIndex)
			if i, ok := byKey[key]; ok {
				c := &cands[i]
				if !containsString(c.keywords, term) {
					c.score *= cfg.Retrieval.HybridMultiplier
					if c.score > 1 {
						c.score = 1
					}
					c.keywords = append(c.keywords, term)
				}
				continue
			}
			byKey[key] = len(cands)
			cands = append(cands, candidate{
				docID:      h.DocumentID,
				chunkIndex: h.ChunkIndex,
				score:      cfg.Retrieval.KeywordOnlyScore,
				matchType:  MatchKeywordOnly,
				keywords:   []string{term},
			})
		}
	}
	return cands, nil
}

// materialize turns candidates into results, enriching each with the
// stored chunk and document semantics.
func (s *Service) materialize(ctx context.Context, fs *store.FolderStore, query string, cands []candidate) ([]SearchResult, error) {
	queryTerms := queryTermSet(query)
	var results []SearchResult

	for _, c := range cands {
		doc, err := fs.SQL().GetDocument(ctx, c.docID)
		if err != nil {
			return nil, ferrors.Newf(ferrors.ErrCodeMissingSemantics,
				"search hit references unknown document %s", c.docID)
		}
		ch, err := fs.SQL().GetChunk(ctx, c.docID, c.chunkIndex)
		if err != nil {
			return nil, ferrors.Newf(ferrors.ErrCodeMissingSemantics,
				"search hit references missing chunk %s#%d", c.docID, c.chunkIndex)
		}

		result := SearchResult{
			DocumentPath: doc.Path,
			Title:        doc.Title,
			ChunkIndex:   c.chunkIndex,
			Snippet:      snippet(ch.Text),
			Score:        c.score,
			MatchType:    c.matchType,
			Context: SemanticContext{
				SearchStrategy: strategyFor(c),
				BoostApplied:   c.boost,
				KeywordMatches: c.keywords,
			},
		}
		if ch.Semantics != nil {
			result.Context.MatchedConcepts = matchedConcepts(queryTerms, ch)
		}
		result.Context.WhyRelevant = whyRelevant(&result, doc.Title, c)
		results = append(results, result)
	}
	return results, nil
}

func strategyFor(c candidate) string {
	switch c.matchType {
	case MatchKeywordOnly:
		return StrategyKeywordOnly
	case MatchFilenameExact, MatchFilenamePartial:
		return StrategyFilenameBoost
	default:
		if len(c.keywords) > 0 {
			return StrategyHybridBoosted
		}
		return StrategySemantic
	}
}

func whyRelevant(r *SearchResult, title string, c candidate) string {
	switch c.matchType {
	case MatchFilenameExact:
		return fmt.Sprintf("filename of %q closely matches the query (similarity %.2f)", title, c.boost)
	case MatchFilenamePartial:
		return fmt.Sprintf("filename of %q partially matches the query (similarity %.2f)", title, c.boost)
	case MatchKeywordOnly:
		return fmt.Sprintf("chunk contains the exact term %q", strings.Join(c.keywords, `", "`))
	default:
		if len(r.Context.MatchedConcepts) > 0 {
			return fmt.Sprintf("chunk discusses %s", strings.Join(r.Context.MatchedConcepts, ", "))
		}
		return fmt.Sprintf("chunk content is semantically close to the query (similarity %.2f)", r.Score)
	}
}

func matchedConcepts(queryTerms map[string]bool, ch *store.Chunk) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range append(ch.Semantics.Topics, ch.Semantics.KeyPhrases...) {
		lower := strings.ToLower(t.Term)
		if seen[lower] {
			continue
		}
		for word := range queryTerms {
			if strings.Contains(lower, word) {
				seen[lower] = true
				out = append(out, t.Term)
				break
			}
		}
	}
	sort.Strings(out)
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func queryTermSet(query string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()[]{}`)
		if len(w) >= 3 {
			out[w] = true
		}
	}
	return out
}

func interpretQuery(query string, poorTerms []string) string {
	if len(poorTerms) > 0 {
		return fmt.Sprintf("semantic search for %q with exact matching for: %s",
			query, strings.Join(poorTerms, ", "))
	}
	return fmt.Sprintf("semantic search for %q", query)
}

func answerConfidence(results []SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	c := sum / float64(len(results))
	if c > 1 {
		c = 1
	}
	return c
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= snippetLen {
		return text
	}
	cut := text[:snippetLen]
	if i := strings.LastIndexByte(cut, ' '); i > snippetLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
