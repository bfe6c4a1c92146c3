// Package manual defines the domain model for indexed service manuals:
// documents, pages, and the content elements (text blocks, tables, figures)
// extracted from each page. It also implements the reference resolution layer
// that maps retrieval hits back to citable tables and figures with artifact
// paths. Concrete storage and embedding backends never depend on this
// package's internals beyond the exported types.
package manual

import (
	"fmt"
	"strings"
)

// ElementType discriminates the content element union.
type ElementType string

const (
	// ElementTextBlock is a block of prose extracted from a page.
	ElementTextBlock ElementType = "text_block"
	// ElementTable is a table with a rendered PNG and HTML artifact.
	ElementTable ElementType = "table"
	// ElementFigure is a figure/diagram with a rendered PNG artifact.
	ElementFigure ElementType = "figure"
)

// Document identifies one indexed manual. Immutable once indexed;
// re-indexing the same ID replaces all of its pages.
type Document struct {
	// ID is the stable document identifier (e.g. "jlg-1055-service").
	ID string `json:"document_id"`
	// Title is the human-readable manual title.
	Title string `json:"document_title"`
	// Revision is the manual revision string (e.g. "Rev C").
	Revision string `json:"document_revision"`
	// Manufacturer is the equipment manufacturer name.
	Manufacturer string `json:"manufacturer"`
	// ModelsCovered lists the machine models this manual applies to.
	ModelsCovered []string `json:"models_covered"`
}

// RelatedElement is a same-page reference from one content element to
// another, identified by the target's element label.
type RelatedElement struct {
	// Label is the target element id on the same page (e.g. "figure-36-1").
	Label string `json:"label"`
	// Description explains the relationship in one sentence.
	Description string `json:"description,omitempty"`
}

// WithinPageRelations records which figures, tables, and text blocks on the
// same page a text block refers to.
type WithinPageRelations struct {
	// RelatedFigures lists figure labels referenced on this page.
	RelatedFigures []RelatedElement `json:"related_figures,omitempty"`
	// RelatedTables lists table labels referenced on this page.
	RelatedTables []RelatedElement `json:"related_tables,omitempty"`
	// RelatedTextBlocks lists text block labels referenced on this page.
	RelatedTextBlocks []RelatedElement `json:"related_text_blocks,omitempty"`
}

// CrossPageContext records continuation of an element onto adjacent pages
// and the related element ids on those pages. Reference resolution expands
// these single-hop only (immediate neighbor page).
type CrossPageContext struct {
	// ContinuedFromPrevious is true when the element continues content that
	// started on page N-1.
	ContinuedFromPrevious bool `json:"continued_from_previous_page,omitempty"`
	// ContinuesOnNext is true when the element continues onto page N+1.
	ContinuesOnNext bool `json:"continues_on_next_page,omitempty"`
	// RelatedPrevious lists element ids on page N-1 related to this element.
	RelatedPrevious []string `json:"related_content_from_previous_page,omitempty"`
	// RelatedNext lists element ids on page N+1 related to this element.
	RelatedNext []string `json:"related_content_from_next_page,omitempty"`
}

// ContentElement is the tagged union over text blocks, tables, and figures.
// The field set per variant is closed: Table/Figure carry artifact refs,
// TextBlock carries relation metadata. Validate enforces the shape at the
// ingestion boundary so downstream consumers never see a malformed element.
type ContentElement struct {
	// Type selects the variant: text_block, table, or figure.
	Type ElementType `json:"type"`
	// ID is the element identifier, unique within its page
	// (e.g. "table-175-1", "figure-36-2", "textblock-12-3").
	ID string `json:"element_id"`
	// Title is a short descriptive title for the element.
	Title string `json:"title"`
	// Summary is a one-to-two sentence summary of the element's content.
	Summary string `json:"summary,omitempty"`
	// Keywords are search keywords describing the element.
	Keywords []string `json:"keywords,omitempty"`
	// Entities are named entities (part numbers, standards, models).
	Entities []string `json:"entities,omitempty"`
	// Warnings are explicit safety warnings attached to the element.
	Warnings []string `json:"warnings,omitempty"`
	// ComponentType classifies the machine system (e.g. "Hydraulic System").
	ComponentType string `json:"component_type,omitempty"`
	// ModelApplicability lists machine models the element applies to.
	ModelApplicability []string `json:"model_applicability,omitempty"`
	// ApplicationContext tags usage contexts (maintenance, assembly, ...).
	ApplicationContext []string `json:"application_context,omitempty"`

	// PNGPath is the rendered PNG artifact, relative to the page directory
	// (tables and figures only, e.g. "tables/table-175-1.png").
	PNGPath string `json:"png_path,omitempty"`
	// HTMLPath is the structured HTML artifact (tables only).
	HTMLPath string `json:"html_path,omitempty"`

	// Relations holds same-page references (text blocks only).
	Relations *WithinPageRelations `json:"within_page_relations,omitempty"`
	// CrossPage holds adjacent-page continuation metadata (text blocks only).
	CrossPage *CrossPageContext `json:"cross_page_context,omitempty"`
}

// Page is one manual page with its extracted content. A page belongs to
// exactly one document and its number is unique within that document.
type Page struct {
	// Document is the owning document's denormalized metadata.
	Document Document `json:"document_metadata"`
	// Number is the 1-based ordinal page number within the document.
	Number int `json:"page_number"`
	// ImagePath is the rendered full-page PNG, relative to the document's
	// artifact root (e.g. "page_175/page_175_full.png"). Optional.
	ImagePath string `json:"page_image,omitempty"`
	// Text is the extracted plain text of the page.
	Text string `json:"text_content,omitempty"`
	// Elements are the content elements extracted from this page.
	Elements []ContentElement `json:"content_elements,omitempty"`
}

// Validate checks a content element against its variant's closed field set.
// It is called at the ingestion boundary; elements that fail validation are
// rejected before they reach the payload codec.
func (e *ContentElement) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("manual: content element has empty id")
	}
	switch e.Type {
	case ElementTextBlock:
		if e.PNGPath != "" || e.HTMLPath != "" {
			return fmt.Errorf("manual: text block %s must not carry artifact paths", e.ID)
		}
	case ElementTable:
		if e.Relations != nil || e.CrossPage != nil {
			return fmt.Errorf("manual: table %s must not carry text block relations", e.ID)
		}
	case ElementFigure:
		if e.HTMLPath != "" {
			return fmt.Errorf("manual: figure %s must not carry an HTML artifact", e.ID)
		}
		if e.Relations != nil || e.CrossPage != nil {
			return fmt.Errorf("manual: figure %s must not carry text block relations", e.ID)
		}
	default:
		return fmt.Errorf("manual: element %s has unknown type %q", e.ID, e.Type)
	}
	return nil
}

// Validate checks the page's invariants: positive page number, a non-empty
// document id, and valid content elements with unique ids.
func (p *Page) Validate() error {
	if p.Document.ID == "" {
		return fmt.Errorf("manual: page %d has empty document id", p.Number)
	}
	if p.Number < 1 {
		return fmt.Errorf("manual: page number must be >= 1, got %d", p.Number)
	}
	seen := make(map[string]bool, len(p.Elements))
	for i := range p.Elements {
		if err := p.Elements[i].Validate(); err != nil {
			return err
		}
		if seen[p.Elements[i].ID] {
			return fmt.Errorf("manual: duplicate element id %s on page %d", p.Elements[i].ID, p.Number)
		}
		seen[p.Elements[i].ID] = true
	}
	return nil
}

// HasTables reports whether the page carries at least one table element.
func (p *Page) HasTables() bool { return p.countType(ElementTable) > 0 }

// HasFigures reports whether the page carries at least one figure element.
func (p *Page) HasFigures() bool { return p.countType(ElementFigure) > 0 }

// countType returns the number of elements of the given type on the page.
func (p *Page) countType(t ElementType) int {
	n := 0
	for i := range p.Elements {
		if p.Elements[i].Type == t {
			n++
		}
	}
	return n
}
