package vectorstore

import (
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/manualqa-go/internal/manual"
)

// Filter is a predicate over payload fields, evaluated server-side by the
// storage engine. The zero value matches everything.
type Filter struct {
	// DocumentID restricts hits to one document.
	DocumentID string
	// Manufacturer restricts hits to one manufacturer.
	Manufacturer string
	// HasTables, when set, requires (or excludes) pages carrying tables.
	HasTables *bool
	// HasFigures, when set, requires (or excludes) pages carrying figures.
	HasFigures *bool
	// PageFrom / PageTo bound the page number range (inclusive; zero means
	// unbounded on that side).
	PageFrom int
	PageTo   int
}

// IsZero reports whether the filter matches everything.
func (f *Filter) IsZero() bool {
	return f == nil || (f.DocumentID == "" && f.Manufacturer == "" &&
		f.HasTables == nil && f.HasFigures == nil && f.PageFrom == 0 && f.PageTo == 0)
}

// toQdrant translates the filter into Qdrant match and range conditions.
// Returns nil when the filter matches everything.
func (f *Filter) toQdrant() *qdrant.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*qdrant.Condition
	if f.DocumentID != "" {
		must = append(must, qdrant.NewMatch(manual.FieldDocumentID, f.DocumentID))
	}
	if f.Manufacturer != "" {
		must = append(must, qdrant.NewMatch(manual.FieldManufacturer, f.Manufacturer))
	}
	if f.HasTables != nil {
		must = append(must, qdrant.NewMatchBool(manual.FieldHasTables, *f.HasTables))
	}
	if f.HasFigures != nil {
		must = append(must, qdrant.NewMatchBool(manual.FieldHasFigures, *f.HasFigures))
	}
	if f.PageFrom != 0 || f.PageTo != 0 {
		rng := &qdrant.Range{}
		if f.PageFrom != 0 {
			gte := float64(f.PageFrom)
			rng.Gte = &gte
		}
		if f.PageTo != 0 {
			lte := float64(f.PageTo)
			rng.Lte = &lte
		}
		must = append(must, qdrant.NewRange(manual.FieldPageNumber, rng))
	}

	return &qdrant.Filter{Must: must}
}

// documentFilter is the canonical filter selecting all points of a document.
func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(manual.FieldDocumentID, documentID)},
	}
}
