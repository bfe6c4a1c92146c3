// Package indexer turns manual pages into multi-vector points and writes
// them to the page store. Indexing is idempotent: point ids are derived
// deterministically from the document id and page number, so re-running
// an index overwrites the previous points in place.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/manualqa-go/internal/embedding"
	"github.com/54b3r/manualqa-go/internal/logging"
	"github.com/54b3r/manualqa-go/internal/manual"
	"github.com/54b3r/manualqa-go/internal/vectorstore"
)

// pointNamespace seeds the deterministic UUIDv5 point ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("manualqa/page-point"))

// PointID derives the deterministic point id for a document page.
func PointID(documentID string, pageNumber int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s/page/%d", documentID, pageNumber))).String()
}

// Config controls indexing behavior.
type Config struct {
	// BatchSize is the number of pages embedded and upserted per batch.
	// Default 4.
	BatchSize int

	// Progress, when set, is invoked after each page with the number of
	// pages processed so far and the total page count.
	Progress func(done, total int)
}

// PageFailure records one page that could not be indexed.
type PageFailure struct {
	// Page is the 1-based page number.
	Page int

	// Reason is a short human-readable failure description.
	Reason string
}

// Summary reports the outcome of an indexing run.
type Summary struct {
	// Attempted is the number of pages the run tried to index.
	Attempted int

	// Succeeded is the number of pages written to the store.
	Succeeded int

	// Failed lists the pages skipped due to per-page errors.
	Failed []PageFailure
}

// Indexer embeds pages and upserts them into the page store.
type Indexer struct {
	embedder embedding.Embedder
	store    vectorstore.PageStore
	cfg      Config
	log      *slog.Logger
}

// New creates an Indexer. A nil logger falls back to slog.Default.
func New(embedder embedding.Embedder, store vectorstore.PageStore, cfg Config, log *slog.Logger) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{embedder: embedder, store: store, cfg: cfg, log: log}
}

// IndexDocument indexes every page of the source under the given document
// descriptor. Per-page embedding failures are recorded in the summary and
// skipped; a model outage, a schema mismatch, or any storage error aborts
// the run. Cancellation aborts at a page boundary after the buffered batch
// is written. The returned summary is valid even when err is non-nil and
// reflects the pages processed before the abort.
func (ix *Indexer) IndexDocument(ctx context.Context, src PageSource, doc manual.Document) (*Summary, error) {
	if doc.ID == "" {
		return nil, errors.New("indexer: document id must not be empty")
	}

	// A schema conflict must surface before any page work starts.
	if err := ix.store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("indexer: collection check failed: %w", err)
	}

	total := src.PageCount()
	summary := &Summary{}
	batch := make([]vectorstore.Point, 0, ix.cfg.BatchSize)

	ix.log.Info("indexing document",
		logging.KeyDocumentID, doc.ID,
		"pages", total,
		"batch_size", ix.cfg.BatchSize)

	for n := 1; n <= total; n++ {
		summary.Attempted++

		point, err := ix.buildPoint(ctx, src, doc, n)
		if err != nil {
			if errors.Is(err, embedding.ErrModelUnavailable) {
				ix.flushPending(batch, summary)
				return summary, fmt.Errorf("indexer: aborting at page %d: %w", n, err)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				ix.flushPending(batch, summary)
				return summary, err
			}
			ix.log.Warn("skipping page", "page", n, "error", err)
			summary.Failed = append(summary.Failed, PageFailure{Page: n, Reason: err.Error()})
			ix.progress(summary.Attempted, total)
			continue
		}

		batch = append(batch, *point)
		if len(batch) >= ix.cfg.BatchSize {
			if err := ix.flush(ctx, batch, summary); err != nil {
				return summary, err
			}
			batch = batch[:0]
		}
		ix.progress(summary.Attempted, total)
	}

	if len(batch) > 0 {
		if err := ix.flush(ctx, batch, summary); err != nil {
			return summary, err
		}
	}

	ix.log.Info("indexing complete",
		logging.KeyDocumentID, doc.ID,
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failed))
	return summary, nil
}

// buildPoint loads, embeds, and packages one page.
func (ix *Indexer) buildPoint(ctx context.Context, src PageSource, doc manual.Document, n int) (*vectorstore.Point, error) {
	rendered, err := src.Page(ctx, n)
	if err != nil {
		return nil, err
	}

	page := rendered.Page
	page.Document = doc
	if page.Number == 0 {
		page.Number = n
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	var vectors [][]float32
	if len(rendered.PNG) > 0 {
		vectors, err = ix.embedder.EmbedImage(ctx, rendered.PNG)
	} else {
		vectors, err = ix.embedder.EmbedText(ctx, manual.EmbeddingText(&page))
	}
	if err != nil {
		return nil, err
	}

	maxPooled, err := embedding.Pool(vectors, embedding.PoolMax)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", embedding.ErrEmbedding, page.Number, err)
	}
	meanPooled, err := embedding.Pool(vectors, embedding.PoolMean)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", embedding.ErrEmbedding, page.Number, err)
	}

	payload, err := manual.PagePayload(&page)
	if err != nil {
		return nil, err
	}

	return &vectorstore.Point{
		ID:          PointID(doc.ID, page.Number),
		Initial:     vectors,
		MaxPooling:  maxPooled,
		MeanPooling: meanPooled,
		Payload:     payload,
	}, nil
}

// flushPending writes already-embedded pages when a run aborts, so the
// buffered batch is completed rather than discarded. The caller's context
// is likely canceled at this point, so the write runs on a detached
// short-deadline context. If the write fails too, those pages stay out of
// the summary.
func (ix *Indexer) flushPending(batch []vectorstore.Point, summary *Summary) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ix.flush(ctx, batch, summary); err != nil {
		ix.log.Warn("dropping buffered pages after abort",
			"pages", len(batch), "error", err)
	}
}

// flush upserts a batch. Storage errors abort the run; they are never
// silently retried.
func (ix *Indexer) flush(ctx context.Context, batch []vectorstore.Point, summary *Summary) error {
	if err := ix.store.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("indexer: batch upsert failed: %w", err)
	}
	summary.Succeeded += len(batch)
	return nil
}

// progress invokes the progress callback when configured.
func (ix *Indexer) progress(done, total int) {
	if ix.cfg.Progress != nil {
		ix.cfg.Progress(done, total)
	}
}
