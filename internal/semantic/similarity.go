package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// similarityCandidates bounds the embedding round-trip size per chunk.
const similarityCandidates = 24

// SimilarityExtractor scores candidate n-grams by embedding cosine
// against the chunk centroid and groups near-duplicate phrases by
// token Jaccard. Used for models whose extraction capability is
// limited to the embedding space itself.
type SimilarityExtractor struct {
	embed EmbedFunc
}

// NewSimilarityExtractor creates the similarity-only strategy.
func NewSimilarityExtractor(embed EmbedFunc) *SimilarityExtractor {
	return &SimilarityExtractor{embed: embed}
}

func (e *SimilarityExtractor) Method() Method { return MethodSimilarityOnly }

func (e *SimilarityExtractor) Extract(ctx context.Context, text string) (*ChunkSemantics, error) {
	cands := Candidates(text, similarityCandidates)
	if len(cands) == 0 {
		return &ChunkSemantics{
			Method:      MethodSimilarityOnly,
			Readability: Readability(text),
			Confidence:  0,
		}, nil
	}

	texts := make([]string, 0, len(cands)+1)
	texts = append(texts, text)
	for _, c := range cands {
		texts = append(texts, c.Phrase)
	}

	vecs, err := e.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("candidate embedding failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d got %d", len(texts), len(vecs))
	}

	centroid := vecs[0]
	type scored struct {
		cand Candidate
		sim  float64
	}
	items := make([]scored, 0, len(cands))
	for i, c := range cands {
		items = append(items, scored{cand: c, sim: cosine(centroid, vecs[i+1])})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].sim > items[j].sim })

	// Jaccard grouping: keep the highest-scoring representative of each
	// near-duplicate family.
	var phrases []ScoredTerm
	for _, it := range items {
		dup := false
		for _, p := range phrases {
			if Jaccard(p.Term, it.cand.Phrase) >= 0.5 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		phrases = append(phrases, ScoredTerm{Term: it.cand.Phrase, Score: it.sim})
		if len(phrases) >= maxKeyPhrases {
			break
		}
	}

	topics := phrases
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}

	return &ChunkSemantics{
		Topics:      topics,
		KeyPhrases:  phrases,
		Readability: Readability(text),
		Method:      MethodSimilarityOnly,
		Confidence:  similarityConfidence(phrases),
		HasExamples: hasExamples(text),
		HasData:     hasData(text),
	}, nil
}

// similarityConfidence is the mean cosine of the selected phrases,
// clamped to [0,1].
func similarityConfidence(phrases []ScoredTerm) float64 {
	if len(phrases) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range phrases {
		sum += p.Score
	}
	conf := sum / float64(len(phrases))
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// cosine between two vectors; zero when dimensions differ.
func cosine(a, b []float32) float64 {
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

// SelectExtractor picks the strategy named by the model capability
// descriptor.
func SelectExtractor(strategy string, embed EmbedFunc) (Extractor, error) {
	switch strings.ToLower(strategy) {
	case string(MethodRich), "":
		return NewRichExtractor(), nil
	case string(MethodSimilarityOnly):
		if embed == nil {
			return nil, fmt.Errorf("similarity_only strategy requires an embedding function")
		}
		return NewSimilarityExtractor(embed), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
}
