package embed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

// batchTimeout bounds one embedding batch end to end.
const batchTimeout = 10 * time.Second

// Pool embeds texts with a fixed set of workers, each holding the
// shared long-lived service session. Batches retry up to 3 times with
// 1s/2s/4s backoff; persistent failures surface per text so the caller
// can record failure records and keep the rest of the document.
type Pool struct {
	service *Service
	workers int
	batch   int
	retry   ferrors.RetryConfig
	logger  *slog.Logger
}

// NewPool creates an embedding pool. workers and batch fall back to
// the tuned defaults (2 workers, batch 1) when non-positive.
func NewPool(service *Service, workers, batch int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if batch <= 0 {
		batch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		service: service,
		workers: workers,
		batch:   batch,
		retry: ferrors.RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     4 * time.Second,
			Multiplier:   2.0,
		},
		logger: logger,
	}
}

// EmbedPassages embeds all texts as passages. vectors[i] is nil exactly
// when errs[i] is non-nil. Cancellation stops admission of queued
// batches; the in-flight batch completes.
func (p *Pool) EmbedPassages(ctx context.Context, texts []string) (vectors [][]float32, errs []error) {
	vectors = make([][]float32, len(texts))
	errs = make([]error, len(texts))
	if len(texts) == 0 {
		return vectors, errs
	}

	type job struct{ start, end int }
	jobs := make(chan job)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for j := range jobs {
				p.embedBatch(gctx, texts[j.start:j.end], vectors[j.start:j.end], errs[j.start:j.end])
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for start := 0; start < len(texts); start += p.batch {
			end := start + p.batch
			if end > len(texts) {
				end = len(texts)
			}
			select {
			case jobs <- job{start, end}:
			case <-gctx.Done():
				// Queued work is dropped; mark the remainder cancelled.
				for i := start; i < len(texts); i++ {
					errs[i] = gctx.Err()
				}
				return nil
			}
		}
		return nil
	})

	_ = g.Wait()
	return vectors, errs
}

// embedBatch fills the output slices for one batch.
func (p *Pool) embedBatch(ctx context.Context, texts []string, out [][]float32, errs []error) {
	var vecs [][]float32
	err := ferrors.Retry(ctx, p.retry, func() error {
		bctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		defer cancel()
		// In-flight inference is non-interruptible: the batch runs on its
		// own timeout even if ctx is already cancelled.
		v, embedErr := p.service.EmbedPassages(bctx, texts)
		if embedErr != nil {
			return embedErr
		}
		vecs = v
		return nil
	})
	if err != nil {
		p.logger.Warn("embedding batch failed",
			slog.Int("batch_size", len(texts)),
			slog.String("error", err.Error()))
		for i := range errs {
			errs[i] = ferrors.Wrap(ferrors.ErrCodeEmbeddingFailed, err)
		}
		return
	}
	copy(out, vecs)
}
