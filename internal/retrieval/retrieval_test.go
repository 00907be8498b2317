package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folder-mcp/folder-mcp/internal/config"
	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
	"github.com/folder-mcp/folder-mcp/internal/semantic"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

// testSource serves folders from a map and embeds queries with a fixed
// per-query vector so scores are hand-computable.
type testSource struct {
	folders map[string]*store.FolderStore
	vectors map[string][]float32
	configs map[string]*config.Config
}

func (s *testSource) List() []string {
	var out []string
	for path := range s.folders {
		out = append(out, path)
	}
	return out
}

func (s *testSource) Folder(path string) (*store.FolderStore, error) {
	fs, ok := s.folders[path]
	if !ok {
		return nil, ferrors.Newf(ferrors.ErrCodeFolderNotIndexed, "folder %s is not indexed", path)
	}
	return fs, nil
}

func (s *testSource) Config(folder string) (*config.Config, error) {
	return s.configs[folder], nil
}

func (s *testSource) EmbedQuery(ctx context.Context, folder, query string) ([]float32, error) {
	vec, ok := s.vectors[query]
	if !ok {
		return []float32{0, 0, 0, 1}, nil
	}
	return vec, nil
}

func newFixture(t *testing.T) (*Service, *store.FolderStore, *testSource) {
	t.Helper()
	cfg := config.New()
	cfg.Model.Dimensions = 4

	fs, err := store.Open(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	src := &testSource{
		folders: map[string]*store.FolderStore{"/data/docs": fs},
		vectors: map[string][]float32{},
		configs: map[string]*config.Config{},
	}
	return NewService(src, cfg, nil), fs, src
}

func seedDocument(t *testing.T, fs *store.FolderStore, path string, filenameVec, contentVec []float32) *store.Document {
	t.Helper()
	id := store.DocumentID(path)
	doc := &store.Document{
		ID: id, Path: path, Title: path, Format: "md", Status: store.StatusOK,
		Summary: &store.DocumentSummary{
			PrimaryPurpose: "testing procedures",
			DocumentType:   "guide",
			TopTopics:      []semantic.ScoredTerm{{Term: "testing procedures", Score: 1}},
			TopPhrases:     []semantic.ScoredTerm{{Term: "testing procedures", Score: 1}},
			Coverage:       1, PhraseRichness: 1, Method: semantic.MethodRich,
		},
	}
	chunks := []*store.Chunk{
		{DocumentID: id, Index: store.FilenameChunkIndex, Text: "filename tokens", Tokens: 2, Embedding: filenameVec},
		{
			DocumentID: id, Index: 0, Tokens: 20,
			Text: "This chunk explains the TMOAT testing procedure in detail.",
			Semantics: &semantic.ChunkSemantics{
				Topics:     []semantic.ScoredTerm{{Term: "testing procedure", Score: 1}},
				KeyPhrases: []semantic.ScoredTerm{{Term: "testing procedure", Score: 1}},
				Method:     semantic.MethodRich, Confidence: 0.7, Readability: 50,
			},
			Embedding: contentVec,
		},
	}
	require.NoError(t, fs.UpsertDocument(context.Background(), doc, chunks))
	return doc
}

func TestSearch_QueryBounds(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, "/data/docs", "a", 10)
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeQueryTooShort, ferrors.GetCode(err))

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'q'
	}
	_, err = svc.Search(ctx, "/data/docs", string(long), 10)
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeQueryTooLong, ferrors.GetCode(err))
}

func TestSearch_UnknownFolder(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.Search(context.Background(), "/nowhere", "find things", 10)
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeFolderNotIndexed, ferrors.GetCode(err))
}

func TestSearch_EmptyFolderReturnsNoResults(t *testing.T) {
	svc, _, _ := newFixture(t)

	answer, err := svc.Search(context.Background(), "/data/docs", "anything here", 10)
	require.NoError(t, err)
	assert.Empty(t, answer.Results)
}

func TestSearch_SemanticRanking(t *testing.T) {
	svc, fs, src := newFixture(t)
	seedDocument(t, fs, "near.md", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	seedDocument(t, fs, "far.md", []float32{1, 0, 0, 0}, []float32{0, 0, 1, 0})
	src.vectors["testing procedure details"] = []float32{0, 0.95, 0.05, 0}

	answer, err := svc.Search(context.Background(), "/data/docs", "testing procedure details", 10)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Results)
	assert.Equal(t, "near.md", answer.Results[0].DocumentPath)
	assert.Equal(t, MatchSemantic, answer.Results[0].MatchType)
	assert.Contains(t, answer.Results[0].Context.MatchedConcepts, "testing procedure")
}

func TestSearch_FilenameExactBoost(t *testing.T) {
	svc, fs, src := newFixture(t)
	// Filename vector aligned with the query; content orthogonal.
	seedDocument(t, fs, "tmoat-plan.md", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	src.vectors["tmoat plan"] = []float32{1, 0, 0, 0}

	answer, err := svc.Search(context.Background(), "/data/docs", "tmoat plan", 10)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Results)

	top := answer.Results[0]
	assert.Equal(t, MatchFilenameExact, top.MatchType)
	// final = 0.4*(1.0*1.5) + 0.6*content(0) = 0.6
	assert.InDelta(t, 0.6, top.Score, 0.02)
	assert.InDelta(t, 1.0, top.Context.BoostApplied, 0.01)
}

func TestSearch_FilenamePartialBoost(t *testing.T) {
	svc, fs, src := newFixture(t)
	// cos = 0.8: between the partial (0.7) and exact (0.9) thresholds.
	seedDocument(t, fs, "partial.md", []float32{0.8, 0.6, 0, 0}, []float32{0, 0, 1, 0})
	src.vectors["partial match"] = []float32{1, 0, 0, 0}

	answer, err := svc.Search(context.Background(), "/data/docs", "partial match", 10)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Results)

	top := answer.Results[0]
	assert.Equal(t, MatchFilenamePartial, top.MatchType)
	// final = 0.3*0.8 + 0.7*content(0) = 0.24
	assert.InDelta(t, 0.24, top.Score, 0.02)
}

func TestSearch_KeywordOnlyResult(t *testing.T) {
	svc, fs, src := newFixture(t)
	// Content chunk has no embedding: only the keyword scan can find it.
	seedDocument(t, fs, "guide.md", []float32{1, 0, 0, 0}, nil)
	src.vectors["where is TMOAT documented"] = []float32{0, 0, 0, 1}

	answer, err := svc.Search(context.Background(), "/data/docs", "where is TMOAT documented", 10)
	require.NoError(t, err)

	assert.Contains(t, answer.Insights.PoorTokenizersDetected, "TMOAT")
	var found bool
	for _, r := range answer.Results {
		if r.MatchType == MatchKeywordOnly {
			found = true
			assert.InDelta(t, 0.75, r.Score, 1e-9)
			assert.Contains(t, r.Context.KeywordMatches, "TMOAT")
			assert.Equal(t, StrategyKeywordOnly, r.Context.SearchStrategy)
		}
	}
	assert.True(t, found, "expected a keyword_only result")
}

func TestSearch_HybridBoostOnVectorHit(t *testing.T) {
	svc, fs, src := newFixture(t)
	seedDocument(t, fs, "guide.md", []float32{0, 0, 0, 1}, []float32{0, 1, 0, 0})
	src.vectors["TMOAT testing procedure"] = []float32{0, 0.9, 0.1, 0}

	answer, err := svc.Search(context.Background(), "/data/docs", "TMOAT testing procedure", 10)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Results)

	top := answer.Results[0]
	assert.Equal(t, MatchSemantic, top.MatchType)
	assert.Equal(t, StrategyHybridBoosted, top.Context.SearchStrategy)
	assert.Contains(t, top.Context.KeywordMatches, "TMOAT")
	// Boosted scores never exceed 1.
	assert.LessOrEqual(t, top.Score, 1.0)
	assert.Greater(t, top.Score, 0.9)
}

func TestSearch_PlainSemanticStrategy(t *testing.T) {
	svc, fs, src := newFixture(t)
	seedDocument(t, fs, "near.md", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	src.vectors["testing procedure details"] = []float32{0, 1, 0, 0}

	answer, err := svc.Search(context.Background(), "/data/docs", "testing procedure details", 10)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Results)
	assert.Equal(t, StrategySemantic, answer.Results[0].Context.SearchStrategy)
}

func TestSearch_HonorsFolderConfig(t *testing.T) {
	svc, fs, src := newFixture(t)
	seedDocument(t, fs, "guide.md", []float32{1, 0, 0, 0}, nil)
	src.vectors["where is TMOAT documented"] = []float32{0, 0, 0, 1}

	folderCfg := config.New()
	folderCfg.Model.Dimensions = 4
	folderCfg.Retrieval.KeywordOnlyScore = 0.42
	src.configs["/data/docs"] = folderCfg

	answer, err := svc.Search(context.Background(), "/data/docs", "where is TMOAT documented", 10)
	require.NoError(t, err)

	var found bool
	for _, r := range answer.Results {
		if r.MatchType == MatchKeywordOnly {
			found = true
			assert.InDelta(t, 0.42, r.Score, 1e-9)
		}
	}
	assert.True(t, found, "expected a keyword_only result scored by the folder config")
}

func TestPoorTokenizerTerms(t *testing.T) {
	cases := map[string][]string{
		"how to use TMOAT today":       {"TMOAT"},
		"find bge-m3 embedding notes":  {"bge-m3"},
		"the HTTPServer setup guide":   {"HTTPServer"},
		"snake_case_config values":     {"snake_case_config"},
		"budget2024 review":            {"budget2024"},
		"plain english words only":     nil,
		"ab XY the":                    nil, // too short
	}
	for query, want := range cases {
		assert.Equal(t, want, PoorTokenizerTerms(query), "query: %s", query)
	}
}

func TestGetDocumentOutline(t *testing.T) {
	svc, fs, _ := newFixture(t)
	seedDocument(t, fs, "guide.md", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	ctx := context.Background()

	outline, err := svc.GetDocumentOutline(ctx, "/data/docs", "guide.md")
	require.NoError(t, err)
	assert.Equal(t, "testing procedures", outline.PrimaryPurpose)
	assert.Equal(t, 1, outline.ChunkCount)
	require.Len(t, outline.Sections, 1)
	assert.Equal(t, 0, outline.Sections[0].ChunkIndex)

	_, err = svc.GetDocumentOutline(ctx, "/data/docs", "missing.md")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeDocumentNotFound, ferrors.GetCode(err))
}

func TestGetDocumentOutline_SectionSemantics(t *testing.T) {
	svc, fs, _ := newFixture(t)
	ctx := context.Background()

	id := store.DocumentID("report.md")
	doc := &store.Document{
		ID: id, Path: "report.md", Title: "report.md", Format: "md", Status: store.StatusOK,
		Summary: &store.DocumentSummary{
			PrimaryPurpose: "quarterly budget",
			DocumentType:   "report",
			TopTopics:      []semantic.ScoredTerm{{Term: "quarterly budget", Score: 1}},
			TopicDiversity: 0, PhraseRichness: 0.9, Coverage: 1,
			Confidence: 0.8, AvgReadability: 55, Method: semantic.MethodRich,
		},
	}
	chunks := []*store.Chunk{
		{
			DocumentID: id, Index: 0, Tokens: 40, Heading: "Overview",
			Text: "Revenue grew 12% over the prior quarter, for example in the EMEA region.",
			Semantics: &semantic.ChunkSemantics{
				Topics: []semantic.ScoredTerm{{Term: "quarterly budget", Score: 1}},
				KeyPhrases: []semantic.ScoredTerm{
					{Term: "revenue growth", Score: 1},
					{Term: "prior quarter", Score: 0.8},
					{Term: "emea region", Score: 0.6},
					{Term: "cost basis", Score: 0.4},
				},
				HasExamples: true, HasData: true, Readability: 55,
				Method: semantic.MethodRich, Confidence: 0.8,
			},
		},
	}
	require.NoError(t, fs.UpsertDocument(ctx, doc, chunks))

	outline, err := svc.GetDocumentOutline(ctx, "/data/docs", "report.md")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOK, outline.Status)
	require.Len(t, outline.Sections, 1)

	sec := outline.Sections[0]
	require.Len(t, sec.MainPoints, 3)
	assert.Equal(t, "revenue growth", sec.MainPoints[0].Term)
	assert.Len(t, sec.KeyPhrases, 4)
	assert.Equal(t, "quarterly budget", sec.Topics[0].Term)
	assert.True(t, sec.HasExamples)
	assert.True(t, sec.HasData)
	assert.InDelta(t, 55, sec.Readability, 1e-9)
}

func TestGetDocumentOutline_QualityFloorDocumentStillServed(t *testing.T) {
	svc, fs, _ := newFixture(t)
	ctx := context.Background()

	id := store.DocumentID("junk.md")
	doc := &store.Document{
		ID: id, Path: "junk.md", Title: "junk.md", Format: "md",
		Status:        store.StatusFailedQuality,
		FailureReason: "document junk.md below quality floor: coverage 0.00, richness 0.00",
		Summary: &store.DocumentSummary{
			DocumentType: "notes", Coverage: 0, PhraseRichness: 0,
		},
	}
	chunks := []*store.Chunk{
		{DocumentID: id, Index: 0, Tokens: 6, Text: "Alpha. Beta. Gamma."},
	}
	require.NoError(t, fs.UpsertDocument(ctx, doc, chunks))

	outline, err := svc.GetDocumentOutline(ctx, "/data/docs", "junk.md")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailedQuality, outline.Status)
	assert.NotEmpty(t, outline.FailureReason)
	require.Len(t, outline.Sections, 1)
	assert.Empty(t, outline.Sections[0].MainPoints)

	// The same document is excluded from folder previews and counted as
	// failed, and its listing entry carries no semantic fields.
	folders, err := svc.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, 1, folders[0].FailedCount)
	assert.Empty(t, folders[0].TopTopics)
}

func TestGetDocumentOutline_MissingSemanticsFailsLoud(t *testing.T) {
	svc, fs, _ := newFixture(t)
	ctx := context.Background()

	doc := &store.Document{ID: "bare.md", Path: "bare.md", Format: "md", Status: store.StatusOK}
	require.NoError(t, fs.UpsertDocument(ctx, doc, nil))

	_, err := svc.GetDocumentOutline(ctx, "/data/docs", "bare.md")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeMissingSemantics, ferrors.GetCode(err))
}

func TestListFoldersAndDocuments(t *testing.T) {
	svc, fs, _ := newFixture(t)
	seedDocument(t, fs, "a.md", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	seedDocument(t, fs, "sub/b.md", []float32{1, 0, 0, 0}, []float32{0, 0, 1, 0})
	ctx := context.Background()

	folders, err := svc.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "/data/docs", folders[0].Path)
	assert.Equal(t, 2, folders[0].IndexedCount)

	listing, err := svc.ListDocuments(ctx, "/data/docs", "")
	require.NoError(t, err)
	require.Len(t, listing.Documents, 1)
	assert.Equal(t, "a.md", listing.Documents[0].Path)
	assert.Equal(t, []string{"sub"}, listing.Preview.Subfolders)

	require.NotNil(t, listing.Documents[0].Quality)
	assert.InDelta(t, 1.0, listing.Documents[0].Quality.PhraseRichness, 1e-9)
	assert.InDelta(t, 1.0, listing.Documents[0].Quality.TopicSpecificity, 1e-9)
	assert.InDelta(t, 1.0, folders[0].Quality.PhraseDiversity, 1e-9)

	ex, err := svc.Explore(ctx, "/data/docs", "")
	require.NoError(t, err)
	require.Len(t, ex.Subfolders, 1)
	assert.Equal(t, "sub", ex.Subfolders[0].Path)
	assert.Equal(t, 1, ex.Subfolders[0].DocumentCount)
}
