package store

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
)

// bleveKeywordIndex is the alternative keyword backend for folders
// where FTS5 tokenization is too coarse. It lives in its own directory
// next to the database, so membership is reconciled against sqlite on
// open.
type bleveKeywordIndex struct {
	idx bleve.Index
}

type bleveEntry struct {
	DocID string `json:"doc_id"`
	Text  string `json:"text"`
}

// NewBleveKeywordIndex opens (creating if needed) a bleve index at path.
func NewBleveKeywordIndex(path string) (KeywordIndex, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist || os.IsNotExist(err) {
		mapping := bleve.NewIndexMapping()
		entry := bleve.NewDocumentMapping()

		idField := bleve.NewTextFieldMapping()
		idField.Analyzer = keyword.Name
		idField.Store = false
		entry.AddFieldMappingsAt("doc_id", idField)

		textField := bleve.NewTextFieldMapping()
		textField.Store = false
		entry.AddFieldMappingsAt("text", textField)

		mapping.DefaultMapping = entry
		idx, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	return &bleveKeywordIndex{idx: idx}, nil
}

func (k *bleveKeywordIndex) Index(ctx context.Context, entries []KeywordEntry) error {
	batch := k.idx.NewBatch()
	for _, e := range entries {
		id := ChunkVectorID(e.DocumentID, e.ChunkIndex)
		if err := batch.Index(id, bleveEntry{DocID: e.DocumentID, Text: e.Text}); err != nil {
			return fmt.Errorf("failed to batch keyword entry %s: %w", id, err)
		}
	}
	return k.idx.Batch(batch)
}

func (k *bleveKeywordIndex) DeleteDocument(ctx context.Context, docID string) error {
	q := bleve.NewTermQuery(docID)
	q.SetField("doc_id")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000

	res, err := k.idx.SearchInContext(ctx, req)
	if err != nil {
		return err
	}

	batch := k.idx.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	return k.idx.Batch(batch)
}

func (k *bleveKeywordIndex) Scan(ctx context.Context, term string) ([]KeywordHit, error) {
	q := bleve.NewMatchQuery(term)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = 1000

	res, err := k.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docID, idx, err := ParseVectorID(hit.ID)
		if err != nil {
			continue
		}
		hits = append(hits, KeywordHit{DocumentID: docID, ChunkIndex: idx, Term: term})
	}
	return hits, nil
}

func (k *bleveKeywordIndex) Close() error { return k.idx.Close() }
