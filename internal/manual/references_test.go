package manual

import (
	"testing"
)

func scoredPages() []ScoredPage {
	tablePage := &Page{
		Document: Document{ID: "jlg-1055-service"},
		Number:   175,
		Elements: []ContentElement{
			{
				Type:     ElementTable,
				ID:       "table-175-1",
				Title:    "Torque Specifications",
				PNGPath:  "tables/table-175-1.png",
				HTMLPath: "tables/table-175-1.html",
			},
			{
				Type:    ElementFigure,
				ID:      "figure-175-1",
				Title:   "Boom Pivot Assembly",
				PNGPath: "images/figure-175-1.png",
			},
		},
	}
	duplicatePage := &Page{
		Document: Document{ID: "jlg-1055-service"},
		Number:   175,
		Elements: []ContentElement{
			{
				Type:     ElementTable,
				ID:       "table-175-1",
				Title:    "Torque Specifications",
				PNGPath:  "tables/table-175-1.png",
				HTMLPath: "tables/table-175-1.html",
			},
		},
	}
	return []ScoredPage{
		{Page: tablePage, SubQuestion: "boom pivot torque", Score: 12.5},
		{Page: duplicatePage, SubQuestion: "torque chart", Score: 9.1},
	}
}

func TestResolveDeduplicatesFirstWins(t *testing.T) {
	t.Parallel()

	r := &Resolver{}
	refs := r.Resolve(scoredPages())

	if len(refs.Tables) != 1 {
		t.Fatalf("Resolve() tables = %v, want 1", len(refs.Tables))
	}
	tab := refs.Tables[0]
	if tab.ElementID != "table-175-1" {
		t.Errorf("table element id = %v, want table-175-1", tab.ElementID)
	}
	if tab.SubQuestion != "boom pivot torque" {
		t.Errorf("table sub-question = %v, want first-surfacing query", tab.SubQuestion)
	}
	if tab.PNGFile != "page_175/tables/table-175-1.png" {
		t.Errorf("table png path = %v, want page_175/tables/table-175-1.png", tab.PNGFile)
	}
	if tab.HTMLFile != "page_175/tables/table-175-1.html" {
		t.Errorf("table html path = %v, want page_175/tables/table-175-1.html", tab.HTMLFile)
	}

	if len(refs.Figures) != 1 {
		t.Fatalf("Resolve() figures = %v, want 1", len(refs.Figures))
	}
	if refs.Figures[0].Label != "figure-175-1" {
		t.Errorf("figure label = %v, want figure-175-1", refs.Figures[0].Label)
	}
}

func TestResolveCrossPageNeighbors(t *testing.T) {
	t.Parallel()

	page := &Page{
		Document: Document{ID: "jlg-1055-service"},
		Number:   36,
		Elements: []ContentElement{
			{
				Type:  ElementTextBlock,
				ID:    "textblock-36-1",
				Title: "Continued hydraulic schematic discussion",
				CrossPage: &CrossPageContext{
					ContinuedFromPrevious: true,
					RelatedPrevious:       []string{"figure-35-2", "textblock-35-1"},
					RelatedNext:           []string{"table-37-1", "not-an-element-id"},
				},
			},
		},
	}

	r := &Resolver{}
	refs := r.Resolve([]ScoredPage{{Page: page, SubQuestion: "hydraulic schematic"}})

	if len(refs.Figures) != 1 {
		t.Fatalf("Resolve() figures = %v, want 1", len(refs.Figures))
	}
	fig := refs.Figures[0]
	if fig.Label != "figure-35-2" {
		t.Errorf("figure label = %v, want figure-35-2", fig.Label)
	}
	if fig.PageNumber != 35 {
		t.Errorf("figure page = %v, want 35", fig.PageNumber)
	}
	if fig.PNGFile != "page_35/images/figure-35-2.png" {
		t.Errorf("figure png path = %v, want page_35/images/figure-35-2.png", fig.PNGFile)
	}

	if len(refs.Tables) != 1 {
		t.Fatalf("Resolve() tables = %v, want 1", len(refs.Tables))
	}
	if refs.Tables[0].PageNumber != 37 {
		t.Errorf("table page = %v, want 37", refs.Tables[0].PageNumber)
	}
}

func TestResolveOmitsUnresolvableArtifacts(t *testing.T) {
	t.Parallel()

	r := &Resolver{
		Exists: func(servedPath string) bool {
			return servedPath != "page_175/images/figure-175-1.png"
		},
	}
	refs := r.Resolve(scoredPages())

	if len(refs.Tables) != 1 {
		t.Errorf("Resolve() tables = %v, want 1", len(refs.Tables))
	}
	if len(refs.Figures) != 0 {
		t.Errorf("Resolve() figures = %v, want 0 after omission", len(refs.Figures))
	}
}

func TestResolveEmptyInput(t *testing.T) {
	t.Parallel()

	r := &Resolver{}
	refs := r.Resolve(nil)

	if refs.Tables == nil || refs.Figures == nil {
		t.Errorf("Resolve() returned nil slices, want empty non-nil")
	}
	if len(refs.Tables) != 0 || len(refs.Figures) != 0 {
		t.Errorf("Resolve() = %v tables, %v figures, want 0, 0", len(refs.Tables), len(refs.Figures))
	}
}
