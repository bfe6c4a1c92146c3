package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// openTestCatalog opens a Catalog backed by a file in a temp directory.
func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRecordRunAndDocuments(t *testing.T) {
	t.Parallel()

	c := openTestCatalog(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	doc := Document{
		ID:           "jlg-1055-service",
		Title:        "JLG 1055 Service Manual",
		Revision:     "Rev C",
		Manufacturer: "JLG",
	}
	run := Run{
		DocumentID: doc.ID,
		Attempted:  312,
		Succeeded:  310,
		Failed:     2,
		StartedAt:  now.Add(-5 * time.Minute),
		FinishedAt: now,
	}
	if err := c.RecordRun(ctx, doc, run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	docs, err := c.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Documents() = %v rows, want 1", len(docs))
	}
	got := docs[0]
	if got.ID != doc.ID || got.Title != doc.Title || got.Manufacturer != doc.Manufacturer {
		t.Errorf("document = %+v, want recorded metadata", got)
	}
	if got.Pages != 312 {
		t.Errorf("pages = %v, want the run's attempted count", got.Pages)
	}
	if !got.LastIndexedAt.Equal(now) {
		t.Errorf("last indexed = %v, want %v", got.LastIndexedAt, now)
	}
}

func TestRecordRunUpsertsDocument(t *testing.T) {
	t.Parallel()

	c := openTestCatalog(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)

	doc := Document{ID: "jlg-1055-service", Title: "JLG 1055 Service Manual"}
	first := Run{DocumentID: doc.ID, Attempted: 100, Succeeded: 100, StartedAt: base.Add(-time.Hour), FinishedAt: base.Add(-time.Hour)}
	if err := c.RecordRun(ctx, doc, first); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	doc.Revision = "Rev D"
	second := Run{DocumentID: doc.ID, Attempted: 120, Succeeded: 118, Failed: 2, StartedAt: base, FinishedAt: base}
	if err := c.RecordRun(ctx, doc, second); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	docs, err := c.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Documents() = %v rows, want the upserted single row", len(docs))
	}
	if docs[0].Revision != "Rev D" || docs[0].Pages != 120 {
		t.Errorf("document = %+v, want latest revision and page count", docs[0])
	}

	runs, err := c.Runs(ctx, doc.ID, 0)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Runs() = %v rows, want 2", len(runs))
	}
	// Newest first.
	if runs[0].Attempted != 120 || runs[1].Attempted != 100 {
		t.Errorf("run order = %v then %v attempted, want 120 then 100", runs[0].Attempted, runs[1].Attempted)
	}
}

func TestRunsLimitAndIsolation(t *testing.T) {
	t.Parallel()

	c := openTestCatalog(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)

	doc := Document{ID: "jlg-1055-service", Title: "JLG 1055 Service Manual"}
	for i := 0; i < 5; i++ {
		run := Run{
			DocumentID: doc.ID,
			Attempted:  i + 1,
			Succeeded:  i + 1,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := c.RecordRun(ctx, doc, run); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, err := c.Runs(ctx, doc.ID, 3)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("Runs(limit 3) = %v rows, want 3", len(runs))
	}

	other, err := c.Runs(ctx, "genie-z45-service", 10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Runs(other document) = %v rows, want 0", len(other))
	}
}

func TestDocumentsEmptyCatalog(t *testing.T) {
	t.Parallel()

	c := openTestCatalog(t)
	docs, err := c.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("Documents() = %v rows, want 0", len(docs))
	}
}

func TestDefaultDBPathHonorsCacheDir(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "state")
	t.Setenv("MANUALQA_CACHE_DIR", cache)

	path, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath() error = %v", err)
	}
	if want := filepath.Join(cache, "catalog.db"); path != want {
		t.Errorf("DefaultDBPath() = %q, want %q", path, want)
	}
	if _, err := os.Stat(cache); err != nil {
		t.Errorf("cache directory was not created: %v", err)
	}
}
