package semantic

import (
	"context"
	"sort"
	"strings"
)

const (
	maxTopics     = 8
	maxKeyPhrases = 12
	maxCandidates = 60
)

// RichExtractor scores candidate phrases lexically, preferring
// multi-word phrases and repeated domain terms. It needs no model
// round-trips and is the default for capable models whose semantic
// signal survives lexical extraction.
type RichExtractor struct{}

// NewRichExtractor creates the rich strategy.
func NewRichExtractor() *RichExtractor {
	return &RichExtractor{}
}

func (e *RichExtractor) Method() Method { return MethodRich }

func (e *RichExtractor) Extract(_ context.Context, text string) (*ChunkSemantics, error) {
	cands := Candidates(text, maxCandidates)

	type scored struct {
		cand  Candidate
		score float64
	}
	items := make([]scored, 0, len(cands))
	for _, c := range cands {
		// Frequency weighted toward longer phrases; a repeated bigram
		// outranks a repeated unigram.
		score := float64(c.Count) * (1 + 0.6*float64(c.Words-1))
		items = append(items, scored{cand: c, score: score})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	// Key phrases favor multi-word candidates; unigrams only fill the
	// tail once multi-word candidates run out.
	var phrases []ScoredTerm
	for _, pass := range []bool{true, false} {
		for _, it := range items {
			if (it.cand.Words > 1) != pass {
				continue
			}
			if len(phrases) >= maxKeyPhrases {
				break
			}
			if subsumed(phrases, it.cand.Phrase) {
				continue
			}
			phrases = append(phrases, ScoredTerm{Term: it.cand.Phrase, Score: it.score})
		}
	}

	// Topics are the most repeated candidates regardless of length,
	// deduplicated against near-identical phrasing.
	var topics []ScoredTerm
	for _, it := range items {
		if len(topics) >= maxTopics {
			break
		}
		if it.cand.Count < 2 && len(topics) >= 3 {
			break
		}
		dup := false
		for _, t := range topics {
			if Jaccard(t.Term, it.cand.Phrase) >= 0.5 {
				dup = true
				break
			}
		}
		if !dup {
			topics = append(topics, ScoredTerm{Term: it.cand.Phrase, Score: it.score})
		}
	}

	sem := &ChunkSemantics{
		Topics:      normalizeScores(topics),
		KeyPhrases:  normalizeScores(phrases),
		Readability: Readability(text),
		Method:      MethodRich,
		Confidence:  richConfidence(text, phrases),
		HasExamples: hasExamples(text),
		HasData:     hasData(text),
	}
	return sem, nil
}

// subsumed reports whether the phrase is contained in an already
// selected phrase (or vice versa).
func subsumed(selected []ScoredTerm, phrase string) bool {
	for _, s := range selected {
		if strings.Contains(s.Term, phrase) || strings.Contains(phrase, s.Term) {
			return true
		}
	}
	return false
}

// richConfidence estimates extraction confidence from phrase yield and
// multi-word share.
func richConfidence(text string, phrases []ScoredTerm) float64 {
	words := len(strings.Fields(text))
	if words == 0 || len(phrases) == 0 {
		return 0
	}

	multi := 0
	for _, p := range phrases {
		if strings.Contains(p.Term, " ") {
			multi++
		}
	}
	multiRatio := float64(multi) / float64(len(phrases))

	yield := float64(len(phrases)) / float64(maxKeyPhrases)
	if yield > 1 {
		yield = 1
	}

	// Very short chunks cannot support confident extraction.
	lengthFactor := float64(words) / 40.0
	if lengthFactor > 1 {
		lengthFactor = 1
	}

	conf := 0.25 + 0.35*multiRatio + 0.2*yield + 0.2*lengthFactor
	if conf > 1 {
		conf = 1
	}
	return conf
}

func normalizeScores(terms []ScoredTerm) []ScoredTerm {
	if len(terms) == 0 {
		return terms
	}
	max := terms[0].Score
	for _, t := range terms {
		if t.Score > max {
			max = t.Score
		}
	}
	if max <= 0 {
		return terms
	}
	out := make([]ScoredTerm, len(terms))
	for i, t := range terms {
		out[i] = ScoredTerm{Term: t.Term, Score: t.Score / max}
	}
	return out
}

var exampleMarkers = []string{"for example", "e.g.", "such as", "for instance", "```"}

func hasExamples(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range exampleMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func hasData(text string) bool {
	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if len(text) == 0 {
		return false
	}
	if strings.Contains(text, " | ") || strings.Contains(text, "\t") {
		return true
	}
	return float64(digits)/float64(len(text)) > 0.05
}
