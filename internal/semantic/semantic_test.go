package semantic

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

const technicalProse = `The embedding worker pool maintains bounded concurrency across
indexing runs. Each embedding worker holds a long-lived inference session, and the
worker pool applies passage prefixes before embedding. Vector normalization keeps the
index space consistent, so the embedding worker pool and the query path share one
vector space. Bounded concurrency protects the host machine during indexing runs,
and the inference session reuse avoids repeated model loading. Passage prefixes and
vector normalization are applied by the worker pool for every chunk in the batch.`

func TestRich_MultiwordShare(t *testing.T) {
	sem, err := NewRichExtractor().Extract(context.Background(), technicalProse)
	require.NoError(t, err)

	require.NotEmpty(t, sem.KeyPhrases)
	multi := 0
	for _, p := range sem.KeyPhrases {
		if strings.Contains(p.Term, " ") {
			multi++
		}
	}
	ratio := float64(multi) / float64(len(sem.KeyPhrases))
	assert.GreaterOrEqual(t, ratio, 0.8, "rich extraction should be dominated by multi-word phrases")
	assert.Equal(t, MethodRich, sem.Method)
	assert.GreaterOrEqual(t, sem.Confidence, ConfidenceFloor)
}

func TestRich_RepeatedTermsBecomeTopics(t *testing.T) {
	sem, err := NewRichExtractor().Extract(context.Background(), technicalProse)
	require.NoError(t, err)

	require.NotEmpty(t, sem.Topics)
	var all []string
	for _, topic := range sem.Topics {
		all = append(all, topic.Term)
	}
	joined := strings.Join(all, " ")
	assert.Contains(t, joined, "worker pool")
}

func TestRich_ScoresAreOrdered(t *testing.T) {
	sem, err := NewRichExtractor().Extract(context.Background(), technicalProse)
	require.NoError(t, err)

	for i := 1; i < len(sem.KeyPhrases); i++ {
		assert.GreaterOrEqual(t, sem.KeyPhrases[i-1].Score, sem.KeyPhrases[i].Score)
	}
}

func TestReadability_TechnicalBand(t *testing.T) {
	score := Readability(technicalProse)
	assert.Greater(t, score, 20.0)
	assert.Less(t, score, 75.0)
}

func TestReadability_SimplerProseScoresHigher(t *testing.T) {
	simple := "The cat sat on the mat. It was warm. The sun was out. We went home."
	assert.Greater(t, Readability(simple), Readability(technicalProse))
	assert.Equal(t, 0.0, Readability(""))
}

func TestExtract_ConfidenceFloorFails(t *testing.T) {
	_, err := Extract(context.Background(), NewRichExtractor(), "ok.")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeChunkSemantic, ferrors.GetCode(err))
}

// staticEmbed maps known phrases near the centroid and everything else
// orthogonal to it.
func staticEmbed(relevant map[string]bool) EmbedFunc {
	return func(_ context.Context, texts []string) ([][]float32, error) {
		vecs := make([][]float32, len(texts))
		for i, text := range texts {
			if i == 0 || relevant[text] {
				vecs[i] = []float32{1, 0.1, 0}
			} else {
				vecs[i] = []float32{0, 0.1, 1}
			}
		}
		return vecs, nil
	}
}

func TestSimilarityOnly_RanksByCentroidCosine(t *testing.T) {
	text := "Budget review covers quarterly revenue. Quarterly revenue exceeded plan. Office plants need water."
	relevant := map[string]bool{
		"quarterly revenue": true,
		"budget review":     true,
	}

	e := NewSimilarityExtractor(staticEmbed(relevant))
	sem, err := e.Extract(context.Background(), text)
	require.NoError(t, err)

	require.NotEmpty(t, sem.KeyPhrases)
	assert.Equal(t, MethodSimilarityOnly, sem.Method)

	top := sem.KeyPhrases[0].Term
	assert.True(t, relevant[top], "top phrase %q should be centroid-aligned", top)
}

func TestSimilarityOnly_JaccardGrouping(t *testing.T) {
	text := "Embedding worker pool design. Embedding worker pool sizing. Embedding worker pool tuning."
	e := NewSimilarityExtractor(func(_ context.Context, texts []string) ([][]float32, error) {
		vecs := make([][]float32, len(texts))
		for i := range texts {
			vecs[i] = []float32{1, 0, 0}
		}
		return vecs, nil
	})

	sem, err := e.Extract(context.Background(), text)
	require.NoError(t, err)

	// Near-duplicate phrase families collapse to one representative.
	for i, a := range sem.KeyPhrases {
		for _, b := range sem.KeyPhrases[i+1:] {
			assert.Less(t, Jaccard(a.Term, b.Term), 0.5,
				"phrases %q and %q should have been grouped", a.Term, b.Term)
		}
	}
}

func TestSelectExtractor(t *testing.T) {
	e, err := SelectExtractor("rich", nil)
	require.NoError(t, err)
	assert.Equal(t, MethodRich, e.Method())

	_, err = SelectExtractor("similarity_only", nil)
	assert.Error(t, err)

	e, err = SelectExtractor("similarity_only", staticEmbed(nil))
	require.NoError(t, err)
	assert.Equal(t, MethodSimilarityOnly, e.Method())

	_, err = SelectExtractor("mystical", nil)
	assert.Error(t, err)
}

func TestCandidates_NeverCrossSentences(t *testing.T) {
	cands := Candidates("alpha beta. gamma delta", 0)
	for _, c := range cands {
		assert.NotContains(t, c.Phrase, "beta gamma")
	}
}

func TestCandidates_StopwordBoundaries(t *testing.T) {
	cands := Candidates("the quick brown fox jumps over the lazy dog", 0)
	for _, c := range cands {
		first := strings.SplitN(c.Phrase, " ", 2)[0]
		parts := strings.Split(c.Phrase, " ")
		last := parts[len(parts)-1]
		assert.False(t, stopwords[first], "phrase %q starts with stopword", c.Phrase)
		assert.False(t, stopwords[last], "phrase %q ends with stopword", c.Phrase)
	}
}

func TestHasExamplesAndData(t *testing.T) {
	assert.True(t, hasExamples("For example, run the tool."))
	assert.False(t, hasExamples("No markers here."))
	assert.True(t, hasData("Q1 | Q2 | Q3"))
	assert.True(t, hasData("1999 2000 2001 2002"))
	assert.False(t, hasData("plain prose without figures"))
}
