package manual

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Payload field names shared between the indexer (which writes them) and the
// retrieval filter builder (which queries them server-side).
const (
	FieldDocumentID   = "document_id"
	FieldPageNumber   = "page_number"
	FieldManufacturer = "manufacturer"
	FieldHasTables    = "has_tables"
	FieldHasFigures   = "has_figures"
)

// PagePayload converts a page into the denormalized JSON-compatible mapping
// stored as the point payload. Elements exist only here — there is no
// separate element store. Aggregate filter fields (has_tables, counts,
// keyword/entity/warning unions) are precomputed so the storage layer can
// evaluate predicates server-side without unpacking the element list.
func PagePayload(p *Page) (map[string]any, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// Round-trip through JSON to get plain map/[]any/float64 shapes the
	// storage client can convert without reflection surprises.
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("manual: marshal page %d: %w", p.Number, err)
	}
	payload := make(map[string]any)
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("manual: unmarshal page %d payload: %w", p.Number, err)
	}

	payload[FieldDocumentID] = p.Document.ID
	payload[FieldManufacturer] = p.Document.Manufacturer
	payload[FieldHasTables] = p.HasTables()
	payload[FieldHasFigures] = p.HasFigures()
	payload["table_count"] = p.countType(ElementTable)
	payload["figure_count"] = p.countType(ElementFigure)
	payload["text_block_count"] = p.countType(ElementTextBlock)

	payload["keywords"] = unionField(p, func(e *ContentElement) []string { return e.Keywords })
	payload["entities"] = unionField(p, func(e *ContentElement) []string { return e.Entities })
	payload["warnings"] = unionField(p, func(e *ContentElement) []string { return e.Warnings })
	payload["applicable_models"] = unionField(p, func(e *ContentElement) []string { return e.ModelApplicability })

	return payload, nil
}

// PageFromPayload reconstructs a Page from a stored point payload. Aggregate
// fields added by PagePayload are ignored by the JSON decoder since they do
// not collide with Page's tags.
func PageFromPayload(payload map[string]any) (*Page, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("manual: marshal payload: %w", err)
	}
	var p Page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("manual: decode page payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// unionField collects the sorted, deduplicated union of a per-element string
// list across all elements of the page.
func unionField(p *Page, field func(*ContentElement) []string) []string {
	set := make(map[string]bool)
	for i := range p.Elements {
		for _, v := range field(&p.Elements[i]) {
			if v != "" {
				set[v] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// EmbeddingText renders a page's structured metadata as a single text block
// suitable for the text embedding path: a document header, per-element
// titles and summaries, the full extracted text, and the aggregated entity /
// warning / keyword unions. Pages without a rendered image are indexed from
// this text instead of pixels.
func EmbeddingText(p *Page) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Document: %s (%s, Revision %s)\n", p.Document.Title, p.Document.Manufacturer, p.Document.Revision)
	fmt.Fprintf(&b, "Page: %d\n", p.Number)

	for i := range p.Elements {
		e := &p.Elements[i]
		switch e.Type {
		case ElementTextBlock:
			fmt.Fprintf(&b, "\nText Block: %s\nSummary: %s\n", e.Title, e.Summary)
		case ElementTable:
			fmt.Fprintf(&b, "\nTable: %s - %s\n", e.Title, e.Summary)
		case ElementFigure:
			fmt.Fprintf(&b, "\nFigure: %s - %s\n", e.Title, e.Summary)
		}
	}

	if p.Text != "" {
		fmt.Fprintf(&b, "\nFull Text Content:\n%s\n", p.Text)
	}

	appendUnion := func(label string, vals []string) {
		if len(vals) > 0 {
			fmt.Fprintf(&b, "\n%s: %s", label, strings.Join(vals, ", "))
		}
	}
	appendUnion("Entities", unionField(p, func(e *ContentElement) []string { return e.Entities }))
	appendUnion("Warnings", unionField(p, func(e *ContentElement) []string { return e.Warnings }))
	appendUnion("Keywords", unionField(p, func(e *ContentElement) []string { return e.Keywords }))
	appendUnion("Model Applicability", unionField(p, func(e *ContentElement) []string { return e.ModelApplicability }))

	return strings.TrimRight(b.String(), "\n ")
}
