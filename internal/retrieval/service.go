package retrieval

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/folder-mcp/folder-mcp/internal/aggregate"
	"github.com/folder-mcp/folder-mcp/internal/config"
	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
	"github.com/folder-mcp/folder-mcp/internal/semantic"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

// Service answers navigation and search operations.
type Service struct {
	source Source
	cfg    *config.Config
	logger *slog.Logger
}

// NewService creates the retrieval service. cfg is the fallback for
// folders whose source cannot resolve a configuration.
func NewService(source Source, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.New()
	}
	return &Service{source: source, cfg: cfg, logger: logger}
}

// folderConfig resolves the effective configuration for one folder, so
// per-folder scoring thresholds and model settings apply.
func (s *Service) folderConfig(folder string) *config.Config {
	cfg, err := s.source.Config(folder)
	if err != nil || cfg == nil {
		return s.cfg
	}
	return cfg
}

// ListFolders summarizes every registered folder.
func (s *Service) ListFolders(ctx context.Context) ([]FolderSummary, error) {
	var out []FolderSummary
	for _, path := range s.source.List() {
		fs, err := s.source.Folder(path)
		if err != nil {
			return nil, err
		}
		counts, err := fs.Status(ctx)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
		}
		preview, err := aggregate.Folder(ctx, fs.SQL(), "")
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
		}
		out = append(out, FolderSummary{
			Path:           path,
			DocumentCount:  counts.Indexed + counts.Failed,
			IndexedCount:   counts.Indexed,
			FailedCount:    counts.Failed,
			ModelID:        counts.ModelID,
			LastUpdated:    counts.LastUpdated,
			TopTopics:      preview.TopTopics,
			AvgReadability: preview.AvgReadability,
			Quality:        preview.Quality,
		})
	}
	return out, nil
}

// ListDocuments lists the direct children of folder/subpath with the
// folder preview.
func (s *Service) ListDocuments(ctx context.Context, folder, subpath string) (*Listing, error) {
	fs, err := s.source.Folder(folder)
	if err != nil {
		return nil, err
	}

	preview, err := aggregate.Folder(ctx, fs.SQL(), subpath)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	docs, err := fs.SQL().ListDocuments(ctx, subpath, true)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}

	listing := &Listing{Preview: preview}
	for _, doc := range docs {
		listing.Documents = append(listing.Documents, docInfo(doc))
	}
	return listing, nil
}

// Explore returns the folder preview, its documents, and a preview per
// direct subfolder. Previews are computed fresh on every call.
func (s *Service) Explore(ctx context.Context, folder, subpath string) (*Exploration, error) {
	fs, err := s.source.Folder(folder)
	if err != nil {
		return nil, err
	}

	listing, err := s.ListDocuments(ctx, folder, subpath)
	if err != nil {
		return nil, err
	}

	ex := &Exploration{Preview: listing.Preview, Documents: listing.Documents}
	prefix := listing.Preview.Path
	for _, name := range listing.Preview.Subfolders {
		sub := name
		if prefix != "" {
			sub = prefix + "/" + name
		}
		p, err := aggregate.Folder(ctx, fs.SQL(), sub)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
		}
		ex.Subfolders = append(ex.Subfolders, p)
	}
	return ex, nil
}

// GetDocumentOutline returns a document's structure and semantics. A
// successfully indexed document without a summary is an internal
// inconsistency and fails with ERR_405 rather than returning nulls.
func (s *Service) GetDocumentOutline(ctx context.Context, folder, docPath string) (*Outline, error) {
	fs, err := s.source.Folder(folder)
	if err != nil {
		return nil, err
	}

	doc, err := fs.SQL().GetDocument(ctx, store.DocumentID(docPath))
	if err == sql.ErrNoRows {
		return nil, ferrors.Newf(ferrors.ErrCodeDocumentNotFound, "document %s not found", docPath)
	}
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	if doc.Status == store.StatusFailed {
		return nil, ferrors.Newf(ferrors.ErrCodeDocumentNotFound,
			"document %s failed indexing: %s", docPath, doc.FailureReason)
	}
	if doc.Summary == nil {
		return nil, ferrors.Newf(ferrors.ErrCodeMissingSemantics,
			"document %s has no semantic summary", docPath)
	}

	chunks, err := fs.SQL().ListChunks(ctx, doc.ID)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}

	outline := &Outline{
		Path:           doc.Path,
		Title:          doc.Title,
		Format:         doc.Format,
		Status:         doc.Status,
		FailureReason:  doc.FailureReason,
		DocumentType:   doc.Summary.DocumentType,
		PrimaryPurpose: doc.Summary.PrimaryPurpose,
		TopTopics:      doc.Summary.TopTopics,
		TopPhrases:     doc.Summary.TopPhrases,
		AvgReadability: doc.Summary.AvgReadability,
	}
	for _, ch := range chunks {
		if ch.IsFilename() {
			continue
		}
		outline.ChunkCount++
		outline.TotalTokens += ch.Tokens
		section := OutlineSection{
			ChunkIndex: ch.Index,
			Heading:    ch.Heading,
			Page:       ch.Page,
			Sheet:      ch.Sheet,
			Tokens:     ch.Tokens,
		}
		if ch.Semantics != nil {
			section.MainPoints = mainPoints(ch.Semantics.KeyPhrases)
			section.Topics = ch.Semantics.Topics
			section.KeyPhrases = ch.Semantics.KeyPhrases
			section.HasExamples = ch.Semantics.HasExamples
			section.HasData = ch.Semantics.HasData
			section.Readability = ch.Semantics.Readability
		}
		outline.Sections = append(outline.Sections, section)
	}
	return outline, nil
}

// mainPoints are the top-ranked key phrases of a chunk.
func mainPoints(phrases []semantic.ScoredTerm) []semantic.ScoredTerm {
	const k = 3
	if len(phrases) <= k {
		return phrases
	}
	return phrases[:k]
}

func docInfo(doc *store.Document) DocumentInfo {
	info := DocumentInfo{
		Path:          doc.Path,
		Title:         doc.Title,
		Format:        doc.Format,
		Size:          doc.Size,
		Status:        doc.Status,
		FailureReason: doc.FailureReason,
	}
	if doc.Summary != nil {
		info.PrimaryPurpose = doc.Summary.PrimaryPurpose
		info.DocumentType = doc.Summary.DocumentType
		info.TopTopics = doc.Summary.TopTopics
		info.Readability = doc.Summary.AvgReadability
		info.Quality = &DocumentQuality{
			ExtractionConfidence: doc.Summary.Confidence,
			PhraseRichness:       doc.Summary.PhraseRichness,
			TopicSpecificity:     aggregate.TopicSpecificity(doc.Summary.TopicDiversity, len(doc.Summary.TopTopics)),
		}
	}
	return info
}
