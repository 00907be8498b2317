// Package aggregate rolls chunk-level semantics up to document and
// folder summaries. Document summaries are persisted at index time;
// folder previews are computed on demand from stored documents.
package aggregate

import (
	"math"
	"sort"
	"strings"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
	"github.com/folder-mcp/folder-mcp/internal/semantic"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

const (
	maxDocTopics  = 20
	maxDocPhrases = 30

	// Quality floor. A document whose chunk semantics mostly failed, or
	// whose phrases are mostly single words, gets failed_quality instead
	// of a misleading summary.
	minCoverage       = 0.8
	minPhraseRichness = 0.6
)

// Document computes a document summary from its chunks. The filename
// chunk is excluded from every statistic. Returns the summary plus an
// ERR_205 when the result falls under the quality floor; the summary is
// still usable for inspection.
func Document(doc *store.Document, chunks []*store.Chunk, processingMS int64) (*store.DocumentSummary, error) {
	content := contentChunks(chunks)

	sum := &store.DocumentSummary{ProcessingMS: processingMS}
	if len(content) == 0 {
		return sum, ferrors.Newf(ferrors.ErrCodeQualityFloor,
			"document %s has no content chunks", doc.Path)
	}

	topics := mergeTerms(content, func(s *semantic.ChunkSemantics) []semantic.ScoredTerm { return s.Topics })
	phrases := mergeTerms(content, func(s *semantic.ChunkSemantics) []semantic.ScoredTerm { return s.KeyPhrases })
	if len(topics) > maxDocTopics {
		topics = topics[:maxDocTopics]
	}
	if len(phrases) > maxDocPhrases {
		phrases = phrases[:maxDocPhrases]
	}
	sum.TopTopics = topics
	sum.TopPhrases = phrases
	sum.PrimaryPurpose = primaryPurpose(topics)
	sum.DocumentType = documentType(doc, content)
	sum.TopicDiversity = shannonEntropy(topics)
	sum.PhraseRichness = multiwordShare(phrases)
	sum.Coherence = meanPairwiseCosine(content)
	sum.Coverage = coverage(content)
	sum.Confidence = weightedConfidence(content)
	sum.AvgReadability = avgReadability(content)
	sum.Method = dominantMethod(content)

	if sum.Coverage < minCoverage || sum.PhraseRichness < minPhraseRichness {
		return sum, ferrors.Newf(ferrors.ErrCodeQualityFloor,
			"document %s below quality floor: coverage %.2f, richness %.2f",
			doc.Path, sum.Coverage, sum.PhraseRichness)
	}
	return sum, nil
}

func contentChunks(chunks []*store.Chunk) []*store.Chunk {
	out := make([]*store.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if !ch.IsFilename() {
			out = append(out, ch)
		}
	}
	return out
}

// mergeTerms folds one term list per chunk into a ranked document list.
// Terms merge case-insensitively, summing scores; the earliest casing
// wins for display. Ties break lexicographically for stable output.
func mergeTerms(chunks []*store.Chunk, pick func(*semantic.ChunkSemantics) []semantic.ScoredTerm) []semantic.ScoredTerm {
	scores := make(map[string]float64)
	display := make(map[string]string)

	for _, ch := range chunks {
		if ch.Semantics == nil {
			continue
		}
		for _, t := range pick(ch.Semantics) {
			key := strings.ToLower(t.Term)
			scores[key] += t.Score
			if _, ok := display[key]; !ok {
				display[key] = t.Term
			}
		}
	}

	out := make([]semantic.ScoredTerm, 0, len(scores))
	for key, score := range scores {
		out = append(out, semantic.ScoredTerm{Term: display[key], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.ToLower(out[i].Term) < strings.ToLower(out[j].Term)
	})

	// Normalize so document scores are comparable across documents.
	if len(out) > 0 && out[0].Score > 0 {
		max := out[0].Score
		for i := range out {
			out[i].Score /= max
		}
	}
	return out
}

// primaryPurpose is the top topic; exact ties already broke
// lexicographically in mergeTerms.
func primaryPurpose(topics []semantic.ScoredTerm) string {
	if len(topics) == 0 {
		return ""
	}
	return topics[0].Term
}

// documentType derives a coarse label from format and structure.
func documentType(doc *store.Document, chunks []*store.Chunk) string {
	switch doc.Format {
	case "xlsx", "csv":
		return "spreadsheet"
	}

	var withData, withHeading int
	for _, ch := range chunks {
		if ch.Semantics != nil && ch.Semantics.HasData {
			withData++
		}
		if ch.Heading != "" {
			withHeading++
		}
	}
	n := len(chunks)
	switch {
	case n > 0 && float64(withData)/float64(n) >= 0.4:
		return "report"
	case withHeading > 0:
		return "guide"
	default:
		return "notes"
	}
}

// TopicSpecificity maps topic entropy into [0, 1]: 1 when one topic
// dominates, approaching 0 as the distribution flattens. It is the
// entropy complement normalized by the maximum entropy for topicCount
// topics.
func TopicSpecificity(diversity float64, topicCount int) float64 {
	if topicCount <= 1 {
		return 1
	}
	max := math.Log2(float64(topicCount))
	if max <= 0 {
		return 1
	}
	s := 1 - diversity/max
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// shannonEntropy over the normalized topic score distribution.
func shannonEntropy(topics []semantic.ScoredTerm) float64 {
	var total float64
	for _, t := range topics {
		total += t.Score
	}
	if total <= 0 {
		return 0
	}
	var h float64
	for _, t := range topics {
		p := t.Score / total
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

func multiwordShare(phrases []semantic.ScoredTerm) float64 {
	if len(phrases) == 0 {
		return 0
	}
	multi := 0
	for _, p := range phrases {
		if strings.ContainsAny(p.Term, " ") {
			multi++
		}
	}
	return float64(multi) / float64(len(phrases))
}

// meanPairwiseCosine samples up to 32 embedded chunks to bound the
// quadratic pair count on large documents.
func meanPairwiseCosine(chunks []*store.Chunk) float64 {
	var vecs [][]float32
	for _, ch := range chunks {
		if ch.Embedding != nil {
			vecs = append(vecs, ch.Embedding)
			if len(vecs) == 32 {
				break
			}
		}
	}
	if len(vecs) < 2 {
		return 1
	}

	var sum float64
	var pairs int
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			sum += cosine(vecs[i], vecs[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
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

func coverage(chunks []*store.Chunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	ok := 0
	for _, ch := range chunks {
		if ch.Semantics != nil {
			ok++
		}
	}
	return float64(ok) / float64(len(chunks))
}

// weightedConfidence weights each chunk's confidence by its token
// count, so a long well-understood chunk outweighs a short noisy one.
func weightedConfidence(chunks []*store.Chunk) float64 {
	var sum, weight float64
	for _, ch := range chunks {
		if ch.Semantics == nil {
			continue
		}
		w := float64(ch.Tokens)
		if w <= 0 {
			w = 1
		}
		sum += ch.Semantics.Confidence * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func avgReadability(chunks []*store.Chunk) float64 {
	var sum float64
	n := 0
	for _, ch := range chunks {
		if ch.Semantics != nil {
			sum += ch.Semantics.Readability
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func dominantMethod(chunks []*store.Chunk) semantic.Method {
	counts := make(map[semantic.Method]int)
	for _, ch := range chunks {
		if ch.Semantics != nil {
			counts[ch.Semantics.Method]++
		}
	}
	var best semantic.Method
	bestN := 0
	for m, n := range counts {
		if n > bestN {
			best, bestN = m, n
		}
	}
	if best == "" {
		return semantic.MethodRich
	}
	return best
}
