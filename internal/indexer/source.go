package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/54b3r/manualqa-go/internal/manual"
)

// RenderedPage pairs a page's structured metadata with the rendered
// full-page PNG handed to the visual embedder.
type RenderedPage struct {
	// Page is the structured page record stored as the point payload.
	Page manual.Page

	// PNG is the rendered full-page image. May be empty for text-only
	// sources; the indexer falls back to text embedding in that case.
	PNG []byte
}

// PageSource supplies pages to the indexer. Implementations are expected
// to be cheap to construct and to defer I/O to the Page call.
type PageSource interface {
	// PageCount returns the number of pages the source provides.
	PageCount() int

	// Page loads the page at the given 1-based number.
	Page(ctx context.Context, n int) (*RenderedPage, error)
}

// ------------------------------------------------------------------
// Directory source
// ------------------------------------------------------------------

// DirectorySource reads a pre-extracted pages directory: one page_N/
// subdirectory per page holding metadata_page_N.json and page_N_full.png.
// This is the layout the extraction pipeline writes.
type DirectorySource struct {
	// root is the pages directory.
	root string

	// pages holds the discovered page numbers in ascending order.
	pages []int
}

// NewDirectorySource scans a pages directory and returns a source over
// every page_N subdirectory found.
func NewDirectorySource(root string) (*DirectorySource, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("indexer: failed to read pages directory %q: %w", root, err)
	}

	var pages []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.Name(), "page_%d", &n); err != nil || n < 1 {
			continue
		}
		pages = append(pages, n)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("indexer: no page_N directories found under %q", root)
	}
	sort.Ints(pages)

	return &DirectorySource{root: root, pages: pages}, nil
}

// PageCount returns the number of discovered pages.
func (s *DirectorySource) PageCount() int { return len(s.pages) }

// Page loads the nth discovered page (1-based position, not page number).
func (s *DirectorySource) Page(ctx context.Context, n int) (*RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 1 || n > len(s.pages) {
		return nil, fmt.Errorf("indexer: page position %d out of range [1, %d]", n, len(s.pages))
	}
	num := s.pages[n-1]
	dir := filepath.Join(s.root, fmt.Sprintf("page_%d", num))

	metaPath := filepath.Join(dir, fmt.Sprintf("metadata_page_%d.json", num))
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("indexer: failed to read metadata for page %d: %w", num, err)
	}

	var page manual.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("indexer: failed to parse metadata for page %d: %w", num, err)
	}
	if page.Number == 0 {
		page.Number = num
	}

	pngPath := filepath.Join(dir, fmt.Sprintf("page_%d_full.png", num))
	png, err := os.ReadFile(pngPath)
	if err != nil {
		return nil, fmt.Errorf("indexer: failed to read page image for page %d: %w", num, err)
	}
	if page.ImagePath == "" {
		page.ImagePath = pngPath
	}

	return &RenderedPage{Page: page, PNG: png}, nil
}

// ------------------------------------------------------------------
// PDF source
// ------------------------------------------------------------------

// PDFSource extracts per-page text directly from a PDF file. It yields no
// page images, so pages from this source are embedded from text alone.
// Use the extraction pipeline's pages directory when visual retrieval
// quality matters.
type PDFSource struct {
	path   string
	reader *pdf.Reader
	closer *os.File
}

// NewPDFSource opens a PDF file for text extraction.
func NewPDFSource(path string) (*PDFSource, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("indexer: failed to open pdf %q: %w", path, err)
	}
	return &PDFSource{path: path, reader: r, closer: f}, nil
}

// PageCount returns the number of pages in the PDF.
func (s *PDFSource) PageCount() int { return s.reader.NumPage() }

// Page extracts the text content of the given page.
func (s *PDFSource) Page(ctx context.Context, n int) (*RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.reader.Page(n)
	if p.V.IsNull() {
		return nil, fmt.Errorf("indexer: pdf page %d is missing", n)
	}

	text, err := p.GetPlainText(nil)
	if err != nil {
		return nil, fmt.Errorf("indexer: failed to extract text from pdf page %d: %w", n, err)
	}

	return &RenderedPage{
		Page: manual.Page{
			Number: n,
			Text:   strings.TrimSpace(text),
		},
	}, nil
}

// Close releases the underlying file handle.
func (s *PDFSource) Close() error {
	return s.closer.Close()
}
