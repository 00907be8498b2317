package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/folder-mcp/folder-mcp/internal/semantic"
)

// schema is the normalized ground-truth layout. Semantic terms live in
// their own rows; nothing is stored as re-parsed JSON blobs.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	path              TEXT NOT NULL UNIQUE,
	title             TEXT NOT NULL DEFAULT '',
	format            TEXT NOT NULL DEFAULT '',
	size              INTEGER NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	failure_reason    TEXT NOT NULL DEFAULT '',
	primary_purpose   TEXT NOT NULL DEFAULT '',
	document_type     TEXT NOT NULL DEFAULT '',
	avg_readability   REAL NOT NULL DEFAULT 0,
	topic_diversity   REAL NOT NULL DEFAULT 0,
	phrase_richness   REAL NOT NULL DEFAULT 0,
	coherence         REAL NOT NULL DEFAULT 0,
	coverage          REAL NOT NULL DEFAULT 0,
	confidence        REAL NOT NULL DEFAULT 0,
	method            TEXT NOT NULL DEFAULT '',
	processing_ms     INTEGER NOT NULL DEFAULT 0,
	has_summary       INTEGER NOT NULL DEFAULT 0,
	processed_at      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
	document_id  TEXT NOT NULL,
	chunk_idx    INTEGER NOT NULL,
	text         TEXT NOT NULL,
	tokens       INTEGER NOT NULL DEFAULT 0,
	start_offset INTEGER NOT NULL DEFAULT 0,
	end_offset   INTEGER NOT NULL DEFAULT 0,
	heading      TEXT NOT NULL DEFAULT '',
	page         INTEGER NOT NULL DEFAULT 0,
	sheet        TEXT NOT NULL DEFAULT '',
	has_semantics INTEGER NOT NULL DEFAULT 0,
	readability  REAL NOT NULL DEFAULT 0,
	method       TEXT NOT NULL DEFAULT '',
	confidence   REAL NOT NULL DEFAULT 0,
	has_examples INTEGER NOT NULL DEFAULT 0,
	has_data     INTEGER NOT NULL DEFAULT 0,
	embedding    BLOB,
	PRIMARY KEY (document_id, chunk_idx)
);

CREATE TABLE IF NOT EXISTS chunk_terms (
	document_id TEXT NOT NULL,
	chunk_idx   INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	pos         INTEGER NOT NULL,
	term        TEXT NOT NULL,
	score       REAL NOT NULL,
	PRIMARY KEY (document_id, chunk_idx, kind, pos)
);

CREATE TABLE IF NOT EXISTS doc_terms (
	document_id TEXT NOT NULL,
	kind        TEXT NOT NULL,
	pos         INTEGER NOT NULL,
	term        TEXT NOT NULL,
	score       REAL NOT NULL,
	PRIMARY KEY (document_id, kind, pos)
);

CREATE TABLE IF NOT EXISTS failures (
	scope       TEXT NOT NULL,
	document_id TEXT NOT NULL DEFAULT '',
	chunk_idx   INTEGER NOT NULL DEFAULT -2,
	path        TEXT NOT NULL DEFAULT '',
	code        TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	attempts    INTEGER NOT NULL DEFAULT 1,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (scope, path, chunk_idx)
);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	document_id UNINDEXED,
	chunk_idx UNINDEXED,
	text,
	tokenize = 'unicode61 tokenchars ''-_'''
);

CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
CREATE INDEX IF NOT EXISTS idx_chunk_terms_doc ON chunk_terms(document_id, chunk_idx);
CREATE INDEX IF NOT EXISTS idx_failures_doc ON failures(document_id);
`

// SQLiteStore is the metadata store for one folder.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the folder database with WAL
// mode and a single writer connection.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: sqlite serializes writers anyway, and one
	// connection sidesteps table-lock errors under concurrency.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// DB exposes the handle for same-file components (FTS5 keyword index).
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// UpsertDocument atomically replaces a document and all of its chunks,
// terms, and FTS rows. Readers never observe a partial document.
func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteDocumentTx(ctx, tx, doc.ID); err != nil {
		return err
	}
	if err := insertDocumentTx(ctx, tx, doc); err != nil {
		return err
	}
	for _, ch := range chunks {
		if err := insertChunkTx(ctx, tx, ch); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument atomically removes a document with all dependents.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteDocumentTx(ctx, tx, docID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteDocumentTx(ctx context.Context, tx *sql.Tx, docID string) error {
	stmts := []string{
		"DELETE FROM chunks_fts WHERE document_id = ?",
		"DELETE FROM chunk_terms WHERE document_id = ?",
		"DELETE FROM doc_terms WHERE document_id = ?",
		"DELETE FROM chunks WHERE document_id = ?",
		"DELETE FROM documents WHERE id = ?",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, docID); err != nil {
			return fmt.Errorf("failed to delete document rows: %w", err)
		}
	}
	return nil
}

func insertDocumentTx(ctx context.Context, tx *sql.Tx, doc *Document) error {
	sum := doc.Summary
	hasSummary := 0
	var (
		primary, docType, method                                       string
		readability, diversity, richness, coherence, coverage, confid  float64
		processingMS                                                   int64
	)
	if sum != nil {
		hasSummary = 1
		primary = sum.PrimaryPurpose
		docType = sum.DocumentType
		method = string(sum.Method)
		readability = sum.AvgReadability
		diversity = sum.TopicDiversity
		richness = sum.PhraseRichness
		coherence = sum.Coherence
		coverage = sum.Coverage
		confid = sum.Confidence
		processingMS = sum.ProcessingMS
	}

	processedAt := doc.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (
			id, path, title, format, size, content_hash, status, failure_reason,
			primary_purpose, document_type, avg_readability, topic_diversity,
			phrase_richness, coherence, coverage, confidence, method,
			processing_ms, has_summary, processed_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		doc.ID, doc.Path, doc.Title, doc.Format, doc.Size, doc.ContentHash,
		doc.Status, doc.FailureReason, primary, docType, readability, diversity,
		richness, coherence, coverage, confid, method, processingMS, hasSummary,
		processedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
	}

	if sum != nil {
		if err := insertTermsTx(ctx, tx, "doc_terms", doc.ID, nil, "topic", sum.TopTopics); err != nil {
			return err
		}
		if err := insertTermsTx(ctx, tx, "doc_terms", doc.ID, nil, "phrase", sum.TopPhrases); err != nil {
			return err
		}
	}
	return nil
}

func insertChunkTx(ctx context.Context, tx *sql.Tx, ch *Chunk) error {
	var blob []byte
	if ch.Embedding != nil {
		blob = encodeVector(ch.Embedding)
	}

	hasSem := 0
	var (
		readability, confidence float64
		method                  string
		hasExamples, hasData    int
	)
	if ch.Semantics != nil {
		hasSem = 1
		readability = ch.Semantics.Readability
		confidence = ch.Semantics.Confidence
		method = string(ch.Semantics.Method)
		if ch.Semantics.HasExamples {
			hasExamples = 1
		}
		if ch.Semantics.HasData {
			hasData = 1
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (
			document_id, chunk_idx, text, tokens, start_offset, end_offset,
			heading, page, sheet, has_semantics, readability, method,
			confidence, has_examples, has_data, embedding
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ch.DocumentID, ch.Index, ch.Text, ch.Tokens, ch.StartOffset, ch.EndOffset,
		ch.Heading, ch.Page, ch.Sheet, hasSem, readability, method,
		confidence, hasExamples, hasData, blob)
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s#%d: %w", ch.DocumentID, ch.Index, err)
	}

	if ch.Semantics != nil {
		idx := ch.Index
		if err := insertTermsTx(ctx, tx, "chunk_terms", ch.DocumentID, &idx, "topic", ch.Semantics.Topics); err != nil {
			return err
		}
		if err := insertTermsTx(ctx, tx, "chunk_terms", ch.DocumentID, &idx, "phrase", ch.Semantics.KeyPhrases); err != nil {
			return err
		}
	}

	// Filename chunks are matched by vector, not keyword scan; content
	// chunks join the FTS table.
	if ch.Index != FilenameChunkIndex {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks_fts (document_id, chunk_idx, text) VALUES (?,?,?)",
			ch.DocumentID, ch.Index, ch.Text); err != nil {
			return fmt.Errorf("failed to insert fts row: %w", err)
		}
	}
	return nil
}

func insertTermsTx(ctx context.Context, tx *sql.Tx, table, docID string, chunkIdx *int, kind string, terms []semantic.ScoredTerm) error {
	for pos, t := range terms {
		var err error
		if chunkIdx == nil {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO doc_terms (document_id, kind, pos, term, score) VALUES (?,?,?,?,?)",
				docID, kind, pos, t.Term, t.Score)
		} else {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO chunk_terms (document_id, chunk_idx, kind, pos, term, score) VALUES (?,?,?,?,?,?)",
				docID, *chunkIdx, kind, pos, t.Term, t.Score)
		}
		if err != nil {
			return fmt.Errorf("failed to insert %s term: %w", table, err)
		}
	}
	return nil
}

// GetDocument fetches a document with its summary terms. Returns
// sql.ErrNoRows when absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (*Document, error) {
	return s.getDocumentWhere(ctx, "id = ?", docID)
}

// GetDocumentByPath fetches a document by folder-relative path.
func (s *SQLiteStore) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return s.getDocumentWhere(ctx, "path = ?", path)
}

func (s *SQLiteStore) getDocumentWhere(ctx context.Context, where string, arg any) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, title, format, size, content_hash, status, failure_reason,
		       primary_purpose, document_type, avg_readability, topic_diversity,
		       phrase_richness, coherence, coverage, confidence, method,
		       processing_ms, has_summary, processed_at
		FROM documents WHERE `+where, arg)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	if doc.Summary != nil {
		if err := s.loadDocTerms(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc        Document
		sum        DocumentSummary
		method     string
		hasSummary int
		processed  int64
	)
	err := row.Scan(&doc.ID, &doc.Path, &doc.Title, &doc.Format, &doc.Size,
		&doc.ContentHash, &doc.Status, &doc.FailureReason,
		&sum.PrimaryPurpose, &sum.DocumentType, &sum.AvgReadability,
		&sum.TopicDiversity, &sum.PhraseRichness, &sum.Coherence,
		&sum.Coverage, &sum.Confidence, &method, &sum.ProcessingMS,
		&hasSummary, &processed)
	if err != nil {
		return nil, err
	}
	doc.ProcessedAt = time.UnixMilli(processed)
	if hasSummary == 1 {
		sum.Method = semantic.Method(method)
		doc.Summary = &sum
	}
	return &doc, nil
}

func (s *SQLiteStore) loadDocTerms(ctx context.Context, doc *Document) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, term, score FROM doc_terms WHERE document_id = ? ORDER BY kind, pos",
		doc.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, term string
		var score float64
		if err := rows.Scan(&kind, &term, &score); err != nil {
			return err
		}
		st := semantic.ScoredTerm{Term: term, Score: score}
		switch kind {
		case "topic":
			doc.Summary.TopTopics = append(doc.Summary.TopTopics, st)
		case "phrase":
			doc.Summary.TopPhrases = append(doc.Summary.TopPhrases, st)
		}
	}
	return rows.Err()
}

// ListDocuments returns documents whose path falls under prefix
// (""/"." means the whole folder). With directOnly, paths with a
// further '/' beyond the prefix are excluded.
func (s *SQLiteStore) ListDocuments(ctx context.Context, prefix string, directOnly bool) ([]*Document, error) {
	prefix = normalizePrefix(prefix)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, title, format, size, content_hash, status, failure_reason,
		       primary_purpose, document_type, avg_readability, topic_diversity,
		       phrase_richness, coherence, coverage, confidence, method,
		       processing_ms, has_summary, processed_at
		FROM documents
		WHERE path LIKE ? ESCAPE '\'
		ORDER BY path`, likePattern(prefix))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		rel := strings.TrimPrefix(doc.Path, prefix)
		if directOnly && strings.Contains(rel, "/") {
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.Summary != nil {
			if err := s.loadDocTerms(ctx, doc); err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

// Subfolders returns the distinct direct child directory names under
// prefix, in lexical order.
func (s *SQLiteStore) Subfolders(ctx context.Context, prefix string) ([]string, error) {
	prefix = normalizePrefix(prefix)

	rows, err := s.db.QueryContext(ctx,
		"SELECT path FROM documents WHERE path LIKE ? ESCAPE '\\' ORDER BY path",
		likePattern(prefix))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]bool)
	var names []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		rel := strings.TrimPrefix(path, prefix)
		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			continue
		}
		name := rel[:slash]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if prefix == "." {
		prefix = ""
	}
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}

// likePattern escapes LIKE metacharacters in the prefix.
func likePattern(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(prefix)
	return escaped + "%"
}

// ListChunks returns a document's chunks ordered by index (the
// filename chunk, index -1, first), with semantics and embeddings.
func (s *SQLiteStore) ListChunks(ctx context.Context, docID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, chunk_idx, text, tokens, start_offset, end_offset,
		       heading, page, sheet, has_semantics, readability, method,
		       confidence, has_examples, has_data, embedding
		FROM chunks WHERE document_id = ? ORDER BY chunk_idx`, docID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []*Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ch := range chunks {
		if ch.Semantics != nil {
			if err := s.loadChunkTerms(ctx, ch); err != nil {
				return nil, err
			}
		}
	}
	return chunks, nil
}

// GetChunk fetches one chunk. Returns sql.ErrNoRows when absent.
func (s *SQLiteStore) GetChunk(ctx context.Context, docID string, index int) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, chunk_idx, text, tokens, start_offset, end_offset,
		       heading, page, sheet, has_semantics, readability, method,
		       confidence, has_examples, has_data, embedding
		FROM chunks WHERE document_id = ? AND chunk_idx = ?`, docID, index)

	ch, err := scanChunk(row)
	if err != nil {
		return nil, err
	}
	if ch.Semantics != nil {
		if err := s.loadChunkTerms(ctx, ch); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var (
		ch                   Chunk
		hasSem               int
		readability, confid  float64
		method               string
		hasExamples, hasData int
		blob                 []byte
	)
	err := row.Scan(&ch.DocumentID, &ch.Index, &ch.Text, &ch.Tokens,
		&ch.StartOffset, &ch.EndOffset, &ch.Heading, &ch.Page, &ch.Sheet,
		&hasSem, &readability, &method, &confid, &hasExamples, &hasData, &blob)
	if err != nil {
		return nil, err
	}
	if hasSem == 1 {
		ch.Semantics = &semantic.ChunkSemantics{
			Readability: readability,
			Method:      semantic.Method(method),
			Confidence:  confid,
			HasExamples: hasExamples == 1,
			HasData:     hasData == 1,
		}
	}
	if len(blob) > 0 {
		ch.Embedding = decodeVector(blob)
	}
	return &ch, nil
}

func (s *SQLiteStore) loadChunkTerms(ctx context.Context, ch *Chunk) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, term, score FROM chunk_terms WHERE document_id = ? AND chunk_idx = ? ORDER BY kind, pos",
		ch.DocumentID, ch.Index)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, term string
		var score float64
		if err := rows.Scan(&kind, &term, &score); err != nil {
			return err
		}
		st := semantic.ScoredTerm{Term: term, Score: score}
		switch kind {
		case "topic":
			ch.Semantics.Topics = append(ch.Semantics.Topics, st)
		case "phrase":
			ch.Semantics.KeyPhrases = append(ch.Semantics.KeyPhrases, st)
		}
	}
	return rows.Err()
}

// VectorEntries streams all (vector id, embedding) pairs for index
// rebuilds.
func (s *SQLiteStore) VectorEntries(ctx context.Context) ([]string, [][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT document_id, chunk_idx, embedding FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	var vecs [][]float32
	for rows.Next() {
		var docID string
		var idx int
		var blob []byte
		if err := rows.Scan(&docID, &idx, &blob); err != nil {
			return nil, nil, err
		}
		ids = append(ids, ChunkVectorID(docID, idx))
		vecs = append(vecs, decodeVector(blob))
	}
	return ids, vecs, rows.Err()
}

// RecordFailure upserts a failure record, bumping attempts.
func (s *SQLiteStore) RecordFailure(ctx context.Context, f Failure) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (scope, document_id, chunk_idx, path, code, message, attempts, created_at, updated_at)
		VALUES (?,?,?,?,?,?,1,?,?)
		ON CONFLICT(scope, path, chunk_idx) DO UPDATE SET
			message = excluded.message,
			code = excluded.code,
			attempts = failures.attempts + 1,
			updated_at = excluded.updated_at`,
		f.Scope, f.DocumentID, f.ChunkIndex, f.Path, f.Code, f.Message, now, now)
	return err
}

// ClearFailures removes all failure records for a path. Called on
// successful retry.
func (s *SQLiteStore) ClearFailures(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM failures WHERE path = ?", path)
	return err
}

// ListFailures returns all failure records, newest first.
func (s *SQLiteStore) ListFailures(ctx context.Context) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, document_id, chunk_idx, path, code, message, attempts, created_at, updated_at
		FROM failures ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Failure
	for rows.Next() {
		var f Failure
		var created, updated int64
		if err := rows.Scan(&f.Scope, &f.DocumentID, &f.ChunkIndex, &f.Path,
			&f.Code, &f.Message, &f.Attempts, &created, &updated); err != nil {
			return nil, err
		}
		f.CreatedAt = time.UnixMilli(created)
		f.UpdatedAt = time.UnixMilli(updated)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetState stores a key/value pair in the state table (checkpoints,
// model identity).
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO state (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// GetState reads a state value; missing keys return "".
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// DeleteState removes a state key.
func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM state WHERE key = ?", key)
	return err
}

// Counts summarizes document statuses and the latest commit time.
func (s *SQLiteStore) Counts(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*), MAX(processed_at) FROM documents GROUP BY status")
	if err != nil {
		return counts, err
	}
	defer func() { _ = rows.Close() }()

	var latest int64
	for rows.Next() {
		var status string
		var n int
		var maxAt sql.NullInt64
		if err := rows.Scan(&status, &n, &maxAt); err != nil {
			return counts, err
		}
		switch status {
		case StatusOK:
			counts.Indexed += n
		default:
			counts.Failed += n
		}
		if maxAt.Valid && maxAt.Int64 > latest {
			latest = maxAt.Int64
		}
	}
	if latest > 0 {
		counts.LastUpdated = time.UnixMilli(latest)
	}
	return counts, rows.Err()
}

// encodeVector packs float32s little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
