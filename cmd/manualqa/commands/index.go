package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/54b3r/manualqa-go/internal/catalog"
	"github.com/54b3r/manualqa-go/internal/indexer"
	"github.com/54b3r/manualqa-go/internal/logging"
	"github.com/54b3r/manualqa-go/internal/manual"
)

// NewIndexCmd constructs the `manualqa index` command, which embeds a
// manual's pages and upserts them into the Qdrant collection.
func NewIndexCmd() *cobra.Command {
	var (
		documentID   string
		title        string
		revision     string
		manufacturer string
		models       []string
		collection   string
		device       string
		dpi          int
		batchSize    int
		maxPages     int
		noProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "index <pdf-file | pages-dir>",
		Args:  cobra.ExactArgs(1),
		Short: "Index a service manual into the Qdrant vector store",
		Long: `Index a service manual so its pages become searchable.

The argument is either a PDF file (text-only extraction) or a pages
directory produced by the extraction pipeline, holding one page_N/
subdirectory per page with metadata_page_N.json and page_N_full.png.
Page directories give far better retrieval quality: pages are embedded
visually, so tables, figures, and wiring diagrams are searchable.

Indexing is idempotent. Re-running with the same --document-id
overwrites the previous points in place.

Required environment variables:
  EMBEDDING_URL        Embedding service base URL (default: http://localhost:8500)
  RENDER_DPI           Page rasterization resolution (default: 150)
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: manual-pages)
  QDRANT_API_KEY       Optional API key for authenticated clusters

Examples:
  manualqa index ./output/pages --document-id fanuc-r30ib --title "R-30iB Maintenance Manual"
  manualqa index manual.pdf --document-id acme-x200 --batch-size 8 --device cuda`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if documentID == "" {
				return fmt.Errorf("index: --document-id is required")
			}

			src, closeSrc, err := openSource(args[0])
			if err != nil {
				return err
			}
			defer closeSrc()

			total := src.PageCount()
			if maxPages > 0 && maxPages < total {
				src = &limitedSource{PageSource: src, limit: maxPages}
				total = maxPages
			}

			collectionName := collection
			if collectionName == "" {
				collectionName = getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
			}

			emb := buildEmbedder(device, dpi)
			store, err := buildStore(collectionName)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer store.Close()

			cfg := indexer.Config{BatchSize: batchSize}
			if !noProgress {
				bar := progressbar.NewOptions(total,
					progressbar.OptionSetDescription("indexing pages"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				cfg.Progress = func(done, _ int) { _ = bar.Set(done) }
			}

			doc := manual.Document{
				ID:            documentID,
				Title:         title,
				Revision:      revision,
				Manufacturer:  manufacturer,
				ModelsCovered: models,
			}

			started := time.Now()
			summary, err := indexer.New(emb, store, cfg, log).IndexDocument(ctx, src, doc)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			recordRun(ctx, log, doc, summary, started)

			fmt.Printf("indexed %d/%d pages into %q\n",
				summary.Succeeded, summary.Attempted, collectionName)
			for _, f := range summary.Failed {
				fmt.Fprintf(os.Stderr, "  page %d skipped: %s\n", f.Page, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "Stable document identifier (required)")
	cmd.Flags().StringVar(&title, "title", "", "Manual title")
	cmd.Flags().StringVar(&revision, "revision", "", "Manual revision string")
	cmd.Flags().StringVar(&manufacturer, "manufacturer", "", "Equipment manufacturer")
	cmd.Flags().StringSliceVar(&models, "models", nil, "Equipment models the manual covers (repeatable)")
	cmd.Flags().StringVar(&collection, "collection", "", "Qdrant collection name (default: QDRANT_COLLECTION or manual-pages)")
	cmd.Flags().StringVar(&device, "device", "", "Embedding device: auto, cpu, cuda (default: EMBEDDING_DEVICE or auto)")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "Page rasterization DPI at the embedding service (default: RENDER_DPI or 150)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 4, "Pages embedded and upserted per batch")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Stop after N pages (0 = all)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

// openSource picks the page source based on the argument: a directory is a
// pre-extracted pages layout, a file is a PDF.
func openSource(path string) (indexer.PageSource, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("index: cannot open %q: %w", path, err)
	}

	if info.IsDir() {
		src, err := indexer.NewDirectorySource(path)
		if err != nil {
			return nil, nil, fmt.Errorf("index: %w", err)
		}
		return src, func() {}, nil
	}

	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, nil, fmt.Errorf("index: %q is neither a directory nor a PDF file", path)
	}
	src, err := indexer.NewPDFSource(path)
	if err != nil {
		return nil, nil, fmt.Errorf("index: %w", err)
	}
	return src, func() { _ = src.Close() }, nil
}

// limitedSource caps the page count of a wrapped source for --max-pages.
type limitedSource struct {
	indexer.PageSource
	limit int
}

// PageCount returns the capped page count.
func (s *limitedSource) PageCount() int {
	if n := s.PageSource.PageCount(); n < s.limit {
		return n
	}
	return s.limit
}

// recordRun writes the run outcome to the local catalog. Catalog problems
// are logged, never fatal: the vector store already has the data.
func recordRun(ctx context.Context, log *slog.Logger, doc manual.Document, summary *indexer.Summary, started time.Time) {
	dbPath := os.Getenv("MANUALQA_CATALOG_DB")
	if dbPath == "disabled" {
		return
	}
	if dbPath == "" {
		var err error
		dbPath, err = catalog.DefaultDBPath()
		if err != nil {
			log.Warn("catalog: could not resolve default DB path, skipping", slog.Any("error", err))
			return
		}
	}
	cat, err := catalog.Open(dbPath)
	if err != nil {
		log.Warn("catalog: failed to open, skipping", slog.Any("error", err))
		return
	}
	defer cat.Close()

	err = cat.RecordRun(ctx, catalog.Document{
		ID:           doc.ID,
		Title:        doc.Title,
		Revision:     doc.Revision,
		Manufacturer: doc.Manufacturer,
	}, catalog.Run{
		DocumentID: doc.ID,
		Attempted:  summary.Attempted,
		Succeeded:  summary.Succeeded,
		Failed:     len(summary.Failed),
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	if err != nil {
		log.Warn("catalog: failed to record run", slog.Any("error", err))
	}
}
