package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/folder-mcp/folder-mcp/internal/aggregate"
	"github.com/folder-mcp/folder-mcp/internal/chunker"
	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/embed"
	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
	"github.com/folder-mcp/folder-mcp/internal/fingerprint"
	"github.com/folder-mcp/folder-mcp/internal/parser"
	"github.com/folder-mcp/folder-mcp/internal/semantic"
	"github.com/folder-mcp/folder-mcp/internal/store"
)

// Per-stage ceilings. A document that blows one fails with a recorded
// reason instead of wedging the run.
const (
	parseTimeout     = 30 * time.Second
	semanticTimeout  = 5 * time.Second
	aggregateTimeout = time.Second
	commitTimeout    = 5 * time.Second
)

// Engine indexes one folder.
type Engine struct {
	folder    string
	cfg       *config.Config
	store     *store.FolderStore
	parser    *parser.Dispatcher
	chunker   *chunker.Chunker
	extractor semantic.Extractor
	service   *embed.Service
	pool      *embed.Pool
	scanner   *fingerprint.Scanner
	failLog   *fingerprint.FailureLog
	lock      *flock.Flock
	events    *Broadcaster
	logger    *slog.Logger

	runMu sync.Mutex
}

// NewEngine wires an engine for folder. The caller owns the store's
// lifetime through Close.
func NewEngine(folder string, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fs, err := store.Open(folder, cfg)
	if err != nil {
		return nil, err
	}

	service, err := embed.NewFromConfig(cfg.Model, cfg.Pipeline.EmbedThreads)
	if err != nil {
		_ = fs.Close()
		return nil, err
	}

	extractor, err := semantic.SelectExtractor(string(cfg.Model.ExtractionStrategy), service.EmbedPassages)
	if err != nil {
		_ = service.Close()
		_ = fs.Close()
		return nil, err
	}

	return &Engine{
		folder:    fs.Layout.Folder,
		cfg:       cfg,
		store:     fs,
		parser:    parser.NewDispatcher(),
		chunker:   chunker.New(chunker.DefaultConfig()),
		extractor: extractor,
		service:   service,
		pool:      embed.NewPool(service, cfg.Pipeline.EmbedWorkers, cfg.Pipeline.EmbedBatchSize, logger),
		scanner:   fingerprint.NewScanner(cfg.Index),
		failLog:   fingerprint.NewFailureLog(fs.Layout.FailureLogPath()),
		lock:      flock.New(fs.Layout.LockPath()),
		events:    NewBroadcaster(),
		logger:    logger.With(slog.String("folder", fs.Layout.Folder)),
	}, nil
}

// Folder returns the absolute folder path.
func (e *Engine) Folder() string { return e.folder }

// Config returns the folder's effective configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the folder's store.
func (e *Engine) Store() *store.FolderStore { return e.store }

// Service returns the folder's embedding service.
func (e *Engine) Service() *embed.Service { return e.service }

// Subscribe registers for progress events.
func (e *Engine) Subscribe() (<-chan Event, func()) { return e.events.Subscribe() }

// Status reports indexed, failed, and pending counts for the folder.
// Pending is the number of on-disk files the stored fingerprint has not
// caught up with yet.
func (e *Engine) Status(ctx context.Context) (store.StatusCounts, error) {
	counts, err := e.store.Status(ctx)
	if err != nil {
		return counts, err
	}
	stored, err := fingerprint.Load(e.store.Layout.FingerprintPath())
	if err != nil {
		return counts, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	current, _, err := e.scanner.Scan(ctx, e.folder)
	if err != nil {
		return counts, ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	diff := fingerprint.DiffSnapshots(stored, current)
	counts.Pending = len(diff.Added) + len(diff.Modified)
	return counts, nil
}

// Close flushes and releases everything.
func (e *Engine) Close() error {
	svcErr := e.service.Close()
	storeErr := e.store.Close()
	if storeErr != nil {
		return storeErr
	}
	return svcErr
}

// Index runs one incremental pass: scan, diff against the stored
// fingerprint, delete removed documents, and process added or modified
// files. With full set, everything is reprocessed. Only one run per
// folder executes at a time; a second process is fenced by the LOCK
// file.
func (e *Engine) Index(ctx context.Context, full bool) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	locked, err := e.lock.TryLock()
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	if !locked {
		return ferrors.Newf(ferrors.ErrCodeStorageIO,
			"another process is indexing %s", e.folder)
	}
	defer func() { _ = e.lock.Unlock() }()

	// A model change invalidates every stored vector.
	storedModel, storedDim, err := e.store.ModelIdentity(ctx)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	if storedModel != "" && (storedModel != e.service.ModelID() ||
		(storedDim != 0 && e.service.Dimensions() != 0 && storedDim != e.service.Dimensions())) {
		e.logger.Info("model changed, forcing full re-index",
			slog.String("stored", storedModel),
			slog.String("current", e.service.ModelID()))
		full = true
	}

	e.events.Publish(Event{Type: EventScanStarted, Folder: e.folder})

	stored, err := fingerprint.Load(e.store.Layout.FingerprintPath())
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	if full {
		stored = fingerprint.NewSnapshot("", 0)
	}

	current, scanFailures, err := e.scanner.Scan(ctx, e.folder)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	diff := fingerprint.DiffSnapshots(stored, current)
	e.logger.Info("scan complete",
		slog.Int("added", len(diff.Added)),
		slog.Int("modified", len(diff.Modified)),
		slog.Int("removed", len(diff.Removed)),
		slog.Int("unreadable", len(scanFailures)))

	var indexed, failed int
	for _, sf := range scanFailures {
		failed++
		cause := ferrors.Wrap(ferrors.ErrCodeFileUnreadable, sf.Err)
		_ = e.recordFailure(ctx, store.ScopeParse, sf.Path, store.DocumentID(sf.Path), cause)
		e.events.Publish(Event{Type: EventFileFailed, Folder: e.folder, Path: sf.Path, Error: cause.Error()})
	}

	for _, relPath := range diff.Removed {
		if err := e.store.DeleteDocument(ctx, store.DocumentID(relPath)); err != nil {
			return err
		}
		delete(stored.Files, relPath)
		e.events.Publish(Event{Type: EventFileDeleted, Folder: e.folder, Path: relPath})
	}

	var snapMu sync.Mutex
	work := append(append([]string{}, diff.Added...), diff.Modified...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Pipeline.ParseConcurrency)
	for _, relPath := range work {
		relPath := relPath
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			err := e.processFile(gctx, relPath)
			// A cancelled file committed nothing; leaving it out of the
			// snapshot makes the next run pick it up again.
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			snapMu.Lock()
			defer snapMu.Unlock()
			// The snapshot advances even for failures: a failed file is
			// retried when its content changes, not on every run.
			stored.Files[relPath] = current.Files[relPath]
			if err != nil {
				failed++
				e.events.Publish(Event{Type: EventFileFailed, Folder: e.folder, Path: relPath, Error: err.Error()})
				if ferrors.IsFatal(err) {
					return err
				}
				return nil
			}
			indexed++
			e.events.Publish(Event{Type: EventFileIndexed, Folder: e.folder, Path: relPath})
			// Checkpoint so an interrupted run resumes where it stopped.
			if (indexed+failed)%25 == 0 {
				_ = stored.Save(e.store.Layout.FingerprintPath())
			}
			return nil
		})
	}
	runErr := g.Wait()

	stored.ModelID = e.service.ModelID()
	stored.Dimension = e.service.Dimensions()
	if err := stored.Save(e.store.Layout.FingerprintPath()); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}
	if err := e.store.SetModelIdentity(ctx, e.service.ModelID(), e.service.Dimensions()); err != nil {
		return err
	}
	if err := e.store.Flush(); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStorageIO, err)
	}

	e.events.Publish(Event{
		Type: EventRunCompleted, Folder: e.folder,
		Indexed: indexed, Failed: failed, Deleted: len(diff.Removed),
	})
	e.logger.Info("indexing run complete",
		slog.Int("indexed", indexed),
		slog.Int("failed", failed),
		slog.Int("deleted", len(diff.Removed)))
	return runErr
}

// processFile runs one file through every stage and commits it.
func (e *Engine) processFile(ctx context.Context, relPath string) error {
	started := time.Now()
	absPath := filepath.Join(e.folder, filepath.FromSlash(relPath))
	docID := store.DocumentID(relPath)

	pctx, cancel := context.WithTimeout(ctx, parseTimeout)
	parsed, err := e.parser.Parse(pctx, absPath, relPath)
	cancel()
	if err != nil {
		return e.recordFailure(ctx, store.ScopeParse, relPath, docID, err)
	}

	pieces := e.chunker.Chunk(parsed)
	if len(pieces) == 0 {
		err := ferrors.Newf(ferrors.ErrCodeParseFailed, "document %s produced no chunks", relPath)
		return e.recordFailure(ctx, store.ScopeParse, relPath, docID, err)
	}
	filenameChunk := chunker.FilenameChunk(relPath)

	chunks := make([]*store.Chunk, 0, len(pieces)+1)
	chunks = append(chunks, convertChunk(docID, filenameChunk, 0))
	offset := 0
	for _, p := range pieces {
		chunks = append(chunks, convertChunk(docID, p, offset))
		offset += len(p.Text) + 1
	}

	// A parsed file starts a fresh attempt: stale failure records from
	// earlier runs no longer describe it.
	_ = e.store.SQL().ClearFailures(ctx, relPath)

	// Semantic extraction and embedding fan out concurrently; each leg
	// writes a disjoint chunk field. A failed chunk stays in the index
	// without semantics and counts against coverage.
	sg, sgctx := errgroup.WithContext(ctx)
	sg.Go(func() error {
		for _, ch := range chunks {
			if ch.IsFilename() {
				continue
			}
			sctx, cancel := context.WithTimeout(sgctx, semanticTimeout)
			sem, err := semantic.Extract(sctx, e.extractor, ch.Text)
			cancel()
			if err != nil {
				e.noteChunkFailure(ctx, store.ScopeSemantic, relPath, docID, ch.Index, err)
				continue
			}
			ch.Semantics = sem
		}
		return nil
	})
	sg.Go(func() error {
		// The filename chunk rides along as one more passage.
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		vectors, errs := e.pool.EmbedPassages(sgctx, texts)
		for i, ch := range chunks {
			if errs[i] != nil {
				e.noteChunkFailure(ctx, store.ScopeEmbedding, relPath, docID, ch.Index, errs[i])
				continue
			}
			ch.Embedding = vectors[i]
		}
		return nil
	})
	_ = sg.Wait()

	// Cancellation mid-file commits nothing; the run's caller decides
	// whether to retry.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	doc := &store.Document{
		ID:          docID,
		Path:        relPath,
		Title:       parsed.Title,
		Format:      parsed.Format,
		Size:        sizeOf(absPath),
		ContentHash: hashOf(e.cfg, absPath),
		Status:      store.StatusOK,
		ProcessedAt: time.Now(),
	}

	actx, cancel := context.WithTimeout(ctx, aggregateTimeout)
	summary, aggErr := aggregateWithDeadline(actx, doc, chunks, time.Since(started).Milliseconds())
	cancel()
	doc.Summary = summary
	if aggErr != nil {
		doc.Status = store.StatusFailedQuality
		doc.FailureReason = aggErr.Error()
		e.noteChunkFailure(ctx, store.ScopeAggregate, relPath, docID, store.DocScopedChunk, aggErr)

		// A document under the quality floor never replaces a prior
		// successful version; the commit is rejected and the stored
		// version stays authoritative.
		if prev, prevErr := e.store.SQL().GetDocument(ctx, docID); prevErr == nil && prev.Status == store.StatusOK {
			e.logger.Warn("quality floor rejected update, keeping previous version",
				slog.String("path", relPath),
				slog.String("error", aggErr.Error()))
			return aggErr
		}
	}

	cctx, cancel := context.WithTimeout(ctx, commitTimeout)
	err = e.store.UpsertDocument(cctx, doc, chunks)
	cancel()
	if err != nil {
		return e.recordFailure(ctx, store.ScopeStorage, relPath, docID, err)
	}

	if doc.Status != store.StatusOK {
		return aggErr
	}
	return nil
}

// aggregateWithDeadline runs the pure aggregation under its budget.
func aggregateWithDeadline(ctx context.Context, doc *store.Document, chunks []*store.Chunk, processingMS int64) (*store.DocumentSummary, error) {
	type result struct {
		sum *store.DocumentSummary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := aggregate.Document(doc, chunks, processingMS)
		done <- result{sum, err}
	}()
	select {
	case r := <-done:
		return r.sum, r.err
	case <-ctx.Done():
		return nil, ferrors.Wrap(ferrors.ErrCodeQualityFloor, ctx.Err())
	}
}

// recordFailure persists a document-scoped failure and writes a failed
// document row so listings surface it.
func (e *Engine) recordFailure(ctx context.Context, scope store.FailureScope, relPath, docID string, cause error) error {
	e.logger.Warn("file failed",
		slog.String("path", relPath),
		slog.String("scope", string(scope)),
		slog.String("error", cause.Error()))

	_ = e.failLog.Append(fingerprint.FailureRecord{
		Path:    relPath,
		Code:    ferrors.GetCode(cause),
		Message: cause.Error(),
	})
	_ = e.store.SQL().RecordFailure(ctx, store.Failure{
		Scope:      scope,
		DocumentID: docID,
		ChunkIndex: store.DocScopedChunk,
		Path:       relPath,
		Code:       ferrors.GetCode(cause),
		Message:    cause.Error(),
	})

	doc := &store.Document{
		ID:            docID,
		Path:          relPath,
		Title:         filepath.Base(relPath),
		Format:        strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), "."),
		Status:        store.StatusFailed,
		FailureReason: cause.Error(),
		ProcessedAt:   time.Now(),
	}
	if err := e.store.UpsertDocument(ctx, doc, nil); err != nil {
		return err
	}
	return cause
}

// noteChunkFailure records a chunk-scoped failure without failing the
// document.
func (e *Engine) noteChunkFailure(ctx context.Context, scope store.FailureScope, relPath, docID string, chunkIndex int, cause error) {
	_ = e.store.SQL().RecordFailure(ctx, store.Failure{
		Scope:      scope,
		DocumentID: docID,
		ChunkIndex: chunkIndex,
		Path:       relPath,
		Code:       ferrors.GetCode(cause),
		Message:    cause.Error(),
	})
}

func convertChunk(docID string, c chunker.Chunk, offset int) *store.Chunk {
	ch := &store.Chunk{
		DocumentID: docID,
		Index:      c.Index,
		Text:       c.Text,
		Tokens:     c.Tokens,
		Heading:    c.Heading,
		Page:       c.Page,
		Sheet:      c.Sheet,
	}
	if c.Index != chunker.FilenameChunkIndex {
		ch.StartOffset = offset
		ch.EndOffset = offset + len(c.Text)
	}
	return ch
}

func sizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func hashOf(cfg *config.Config, path string) string {
	h, err := fingerprint.HashFile(path, cfg.Index.MaxHashBytes, cfg.Index.PartialHashBytes)
	if err != nil {
		return ""
	}
	return h
}
