package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/folder-mcp/folder-mcp/internal/config"
)

// State keys recorded per folder.
const (
	StateModelID    = "model_id"
	StateDimensions = "dimensions"
	StateCheckpoint = "checkpoint"
)

// FolderStore composes the sqlite store, vector index, and keyword
// index for one folder. Upserts keep all three in step: sqlite commits
// first (it is the ground truth), then derived indexes follow, and a
// crash in between heals on the next open, which reconciles the saved
// vector file against sqlite membership.
type FolderStore struct {
	Layout  Layout
	sqlite  *SQLiteStore
	vectors *VectorIndex
	keyword KeywordIndex
	cfg     *config.Config
}

// Open opens or creates a folder's index artifacts.
func Open(folder string, cfg *config.Config) (*FolderStore, error) {
	layout := NewLayout(folder)
	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	sq, err := OpenSQLite(layout.DatabasePath())
	if err != nil {
		return nil, err
	}

	fs := &FolderStore{Layout: layout, sqlite: sq, cfg: cfg}

	if err := fs.openKeyword(); err != nil {
		_ = sq.Close()
		return nil, err
	}
	if err := fs.openVectors(); err != nil {
		_ = fs.keyword.Close()
		_ = sq.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FolderStore) openKeyword() error {
	if fs.cfg.Retrieval.KeywordBackend == "bleve" {
		kw, err := NewBleveKeywordIndex(fs.Layout.BlevePath())
		if err != nil {
			return err
		}
		fs.keyword = kw
		return nil
	}
	fs.keyword = NewSQLiteKeywordIndex(fs.sqlite)
	return nil
}

func (fs *FolderStore) openVectors() error {
	dim := fs.cfg.Model.Dimensions
	if dim == 0 {
		if s, err := fs.sqlite.GetState(context.Background(), StateDimensions); err == nil && s != "" {
			dim, _ = strconv.Atoi(s)
		}
	}

	ids, vecs, err := fs.sqlite.VectorEntries(context.Background())
	if err != nil {
		return err
	}

	loaded, ok, err := LoadVectorIndex(fs.Layout.VectorsPath(), dim)
	if err != nil {
		return err
	}
	// A vector file that survived a crash between the sqlite commit and
	// the flush looks valid but is silently stale, so membership is
	// checked against sqlite on every open.
	if ok && loaded.ContainsExactly(ids) {
		fs.vectors = loaded
		return nil
	}

	// Missing or stale vector file: rebuild from sqlite. The rebuilt
	// index is dirty and persists on the next flush.
	fs.vectors = NewVectorIndex(dim)
	if len(ids) > 0 {
		if fs.vectors.dim == 0 {
			fs.vectors.dim = len(vecs[0])
		}
		if err := fs.vectors.Rebuild(ids, vecs); err != nil {
			return err
		}
	}
	return nil
}

// SQL exposes the metadata store for read paths.
func (fs *FolderStore) SQL() *SQLiteStore { return fs.sqlite }

// UpsertDocument commits a document atomically: sqlite transaction,
// then vector replacement, then keyword replacement.
func (fs *FolderStore) UpsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) error {
	if err := fs.sqlite.UpsertDocument(ctx, doc, chunks); err != nil {
		return err
	}

	fs.vectors.RemoveDocument(doc.ID)
	for _, ch := range chunks {
		if ch.Embedding == nil {
			continue
		}
		if fs.vectors.dim == 0 {
			fs.vectors.dim = len(ch.Embedding)
		}
		if err := fs.vectors.Add(ch.VectorID(), ch.Embedding); err != nil {
			return err
		}
	}

	if err := fs.keyword.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	entries := make([]KeywordEntry, 0, len(chunks))
	for _, ch := range chunks {
		if ch.IsFilename() {
			continue
		}
		entries = append(entries, KeywordEntry{DocumentID: ch.DocumentID, ChunkIndex: ch.Index, Text: ch.Text})
	}
	return fs.keyword.Index(ctx, entries)
}

// DeleteDocument removes a document from all three indexes.
func (fs *FolderStore) DeleteDocument(ctx context.Context, docID string) error {
	if err := fs.sqlite.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	fs.vectors.RemoveDocument(docID)
	return fs.keyword.DeleteDocument(ctx, docID)
}

// VectorSearch returns the k nearest chunks by cosine similarity.
func (fs *FolderStore) VectorSearch(vec []float32, k int) ([]VectorHit, error) {
	return fs.vectors.Search(vec, k)
}

// KeywordScan returns chunks matching term in the keyword index.
func (fs *FolderStore) KeywordScan(ctx context.Context, term string) ([]KeywordHit, error) {
	return fs.keyword.Scan(ctx, term)
}

// VectorCount returns the number of live vectors.
func (fs *FolderStore) VectorCount() int { return fs.vectors.Len() }

// SetModelIdentity records the model that produced the stored vectors.
func (fs *FolderStore) SetModelIdentity(ctx context.Context, modelID string, dim int) error {
	if err := fs.sqlite.SetState(ctx, StateModelID, modelID); err != nil {
		return err
	}
	return fs.sqlite.SetState(ctx, StateDimensions, strconv.Itoa(dim))
}

// ModelIdentity returns the recorded model id and dimension.
func (fs *FolderStore) ModelIdentity(ctx context.Context) (string, int, error) {
	id, err := fs.sqlite.GetState(ctx, StateModelID)
	if err != nil {
		return "", 0, err
	}
	dimStr, err := fs.sqlite.GetState(ctx, StateDimensions)
	if err != nil {
		return "", 0, err
	}
	dim, _ := strconv.Atoi(dimStr)
	return id, dim, nil
}

// Status summarizes the folder's index.
func (fs *FolderStore) Status(ctx context.Context) (StatusCounts, error) {
	counts, err := fs.sqlite.Counts(ctx)
	if err != nil {
		return counts, err
	}
	counts.ModelID, counts.Dimensions, err = fs.ModelIdentity(ctx)
	return counts, err
}

// Flush persists the vector index if it changed since the last save.
func (fs *FolderStore) Flush() error {
	if !fs.vectors.Dirty() {
		return nil
	}
	return fs.vectors.Save(fs.Layout.VectorsPath())
}

// Close flushes and releases all resources.
func (fs *FolderStore) Close() error {
	flushErr := fs.Flush()
	kwErr := fs.keyword.Close()
	sqErr := fs.sqlite.Close()
	if flushErr != nil {
		return flushErr
	}
	if kwErr != nil {
		return kwErr
	}
	return sqErr
}
