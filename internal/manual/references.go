package manual

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strconv"
)

// TableReference cites one table surfaced by retrieval. File paths are
// server-relative and served statically by the HTTP layer.
type TableReference struct {
	// ElementID is the table's element id (e.g. "table-175-1").
	ElementID string `json:"element_id"`
	// SubQuestion is the query that first surfaced this table.
	SubQuestion string `json:"sub_question"`
	// PageNumber is the page the table appears on.
	PageNumber int `json:"page_number"`
	// PNGFile is the served path of the rendered table image.
	PNGFile string `json:"png_file"`
	// HTMLFile is the served path of the table's HTML export.
	HTMLFile string `json:"html_file"`
}

// FigureReference cites one figure surfaced by retrieval.
type FigureReference struct {
	// Label is the figure label (e.g. "figure-36-1").
	Label string `json:"label"`
	// SubQuestion is the query that first surfaced this figure.
	SubQuestion string `json:"sub_question"`
	// PageNumber is the page the figure appears on.
	PageNumber int `json:"page_number"`
	// PNGFile is the served path of the figure image.
	PNGFile string `json:"png_file"`
}

// References is the citation set attached to an answer.
type References struct {
	// Tables lists cited tables, in first-surfaced order.
	Tables []TableReference `json:"tables"`
	// Figures lists cited figures, in first-surfaced order.
	Figures []FigureReference `json:"figures"`
}

// ScoredPage pairs a retrieved page with the sub-question that produced the
// hit. The answer layer builds these from raw retrieval hits; reference
// resolution itself performs no further retrieval.
type ScoredPage struct {
	// Page is the reconstructed page payload.
	Page *Page
	// SubQuestion is the query string that retrieved this page.
	SubQuestion string
	// Score is the similarity score of the hit, kept for logging.
	Score float32
}

// Resolver shapes retrieval hits into concrete table and figure citations.
// It is a pure transform over already-fetched payload data.
type Resolver struct {
	// Exists reports whether a served artifact path is resolvable. When nil
	// every path is assumed resolvable. Elements whose artifacts cannot be
	// resolved are logged and omitted (citations are best-effort once the
	// answer itself is grounded).
	Exists func(servedPath string) bool
	// Log receives warnings for omitted elements. Defaults to slog.Default.
	Log *slog.Logger
}

// elementIDPattern matches the "<kind>-<page>-<ordinal>" element id scheme
// used by the extraction pipeline. The page component lets cross-page
// references resolve artifact paths without fetching the neighbor page.
var elementIDPattern = regexp.MustCompile(`^(table|figure|image|textblock)-(\d+)-(\d+)$`)

// Resolve expands retrieved pages into the full citation set. Every table
// and figure element of every page becomes a reference record; duplicates
// across pages are collapsed by element id, first occurrence winning (the
// sub-question that first surfaced an element is retained). Cross-page
// related content is expanded single-hop: related element ids pointing at
// the immediate neighbor pages yield additional references with paths
// derived from the id itself.
func (r *Resolver) Resolve(pages []ScoredPage) References {
	refs := References{
		Tables:  []TableReference{},
		Figures: []FigureReference{},
	}
	seen := make(map[string]bool)

	for _, sp := range pages {
		if sp.Page == nil {
			continue
		}
		for i := range sp.Page.Elements {
			e := &sp.Page.Elements[i]
			switch e.Type {
			case ElementTable, ElementFigure:
				r.addElement(&refs, seen, sp.Page.Number, e, sp.SubQuestion)
			case ElementTextBlock:
				r.addNeighbors(&refs, seen, e, sp.SubQuestion)
			}
		}
	}
	return refs
}

// addElement emits a reference for a table or figure present in a hit's own
// payload, deduplicating by element id.
func (r *Resolver) addElement(refs *References, seen map[string]bool, pageNum int, e *ContentElement, subQuestion string) {
	if seen[e.ID] {
		return
	}
	png := servedPath(pageNum, e.Type, e.ID, e.PNGPath, "png")
	if !r.resolvable(png) {
		r.logger().Warn("reference omitted: artifact not resolvable",
			slog.String("element_id", e.ID),
			slog.String("path", png),
		)
		return
	}
	seen[e.ID] = true

	switch e.Type {
	case ElementTable:
		refs.Tables = append(refs.Tables, TableReference{
			ElementID:   e.ID,
			SubQuestion: subQuestion,
			PageNumber:  pageNum,
			PNGFile:     png,
			HTMLFile:    servedPath(pageNum, e.Type, e.ID, e.HTMLPath, "html"),
		})
	case ElementFigure:
		refs.Figures = append(refs.Figures, FigureReference{
			Label:       e.ID,
			SubQuestion: subQuestion,
			PageNumber:  pageNum,
			PNGFile:     png,
		})
	}
}

// addNeighbors expands a text block's cross-page related element ids into
// references. Only ids that parse under the element id scheme are emitted;
// free-form descriptions are skipped. Expansion is deliberately single-hop.
func (r *Resolver) addNeighbors(refs *References, seen map[string]bool, e *ContentElement, subQuestion string) {
	if e.CrossPage == nil {
		return
	}
	related := make([]string, 0, len(e.CrossPage.RelatedPrevious)+len(e.CrossPage.RelatedNext))
	related = append(related, e.CrossPage.RelatedPrevious...)
	related = append(related, e.CrossPage.RelatedNext...)

	for _, id := range related {
		m := elementIDPattern.FindStringSubmatch(id)
		if m == nil || seen[id] {
			continue
		}
		pageNum, _ := strconv.Atoi(m[2])

		var kind ElementType
		switch m[1] {
		case "table":
			kind = ElementTable
		case "figure", "image":
			kind = ElementFigure
		default:
			continue // text blocks are not citable artifacts
		}

		neighbor := ContentElement{Type: kind, ID: id, Title: id}
		r.addElement(refs, seen, pageNum, &neighbor, subQuestion)
	}
}

// resolvable applies the Exists probe when configured.
func (r *Resolver) resolvable(servedPath string) bool {
	if r.Exists == nil {
		return true
	}
	return r.Exists(servedPath)
}

// logger returns the configured logger or the process default.
func (r *Resolver) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// servedPath returns the server-relative artifact path for an element. When
// the payload carries an explicit relative path it is joined under the
// page directory; otherwise the conventional extraction layout is assumed
// (tables/<id>.<ext> for tables, images/<id>.png for figures).
func servedPath(pageNum int, kind ElementType, id, explicit, ext string) string {
	pageDir := fmt.Sprintf("page_%d", pageNum)
	if explicit != "" {
		return path.Join(pageDir, explicit)
	}
	switch kind {
	case ElementTable:
		return path.Join(pageDir, "tables", id+"."+ext)
	default:
		return path.Join(pageDir, "images", id+"."+ext)
	}
}
