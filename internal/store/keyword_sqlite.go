package store

import (
	"context"
	"strings"
)

// sqliteKeywordIndex scans the chunks_fts virtual table. The table is
// maintained inside the document upsert transaction, so Index and
// DeleteDocument are no-ops here: keyword membership can never drift
// from the chunk rows.
type sqliteKeywordIndex struct {
	store *SQLiteStore
}

// NewSQLiteKeywordIndex returns the FTS5-backed keyword index.
func NewSQLiteKeywordIndex(store *SQLiteStore) KeywordIndex {
	return &sqliteKeywordIndex{store: store}
}

func (k *sqliteKeywordIndex) Index(ctx context.Context, entries []KeywordEntry) error {
	return nil
}

func (k *sqliteKeywordIndex) DeleteDocument(ctx context.Context, docID string) error {
	return nil
}

func (k *sqliteKeywordIndex) Close() error { return nil }

func (k *sqliteKeywordIndex) Scan(ctx context.Context, term string) ([]KeywordHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	// Phrase-quote the term so FTS5 operators and hyphens read as
	// literal text.
	quoted := `"` + strings.ReplaceAll(term, `"`, `""`) + `"`

	rows, err := k.store.DB().QueryContext(ctx,
		"SELECT document_id, chunk_idx FROM chunks_fts WHERE chunks_fts MATCH ?", quoted)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.DocumentID, &h.ChunkIndex); err != nil {
			return nil, err
		}
		h.Term = term
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
