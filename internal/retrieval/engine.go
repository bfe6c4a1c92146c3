// Package retrieval runs similarity queries against the page store. It
// embeds the query, pools it when a pooled vector field is targeted, and
// returns hits in a deterministic order. It never re-ranks: ordering is
// the store's similarity score, with the point id breaking exact ties.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/54b3r/manualqa-go/internal/embedding"
	"github.com/54b3r/manualqa-go/internal/vectorstore"
)

// Errors returned for malformed queries. Both are detected before any
// embedding or storage call is made.
var (
	// ErrInvalidQuery indicates the query carries neither text nor an
	// image, or both at once.
	ErrInvalidQuery = errors.New("retrieval: query must carry exactly one of text or image")

	// ErrVectorMismatch indicates the requested vector field and pooling
	// strategy disagree, or the vector field is unknown.
	ErrVectorMismatch = errors.New("retrieval: vector field and pooling strategy mismatch")
)

// Query describes one retrieval request.
type Query struct {
	// Text is the textual query. Mutually exclusive with ImagePNG.
	Text string

	// ImagePNG is a query image. Mutually exclusive with Text.
	ImagePNG []byte

	// VectorName selects the named vector field to search. Empty defaults
	// to the full multi-vector field.
	VectorName string

	// Pooling is the pooling strategy applied to the query embedding.
	// Empty means no pooling and is only valid with the multi-vector
	// field; "max" and "mean" must pair with their matching field.
	Pooling embedding.Strategy

	// Limit caps the number of hits. Default 6.
	Limit int

	// ScoreThreshold excludes hits scoring below it. Zero disables the
	// threshold.
	ScoreThreshold float32

	// Filter restricts the search by payload fields.
	Filter vectorstore.Filter
}

// Result is one retrieval hit.
type Result struct {
	// ID is the point id.
	ID string

	// Score is the store's similarity score.
	Score float32

	// Payload is the stored page payload.
	Payload map[string]any
}

// Engine embeds queries and searches the page store.
type Engine struct {
	embedder embedding.Embedder
	store    vectorstore.PageStore
}

// NewEngine creates a retrieval Engine.
func NewEngine(embedder embedding.Embedder, store vectorstore.PageStore) *Engine {
	return &Engine{embedder: embedder, store: store}
}

// poolingFor maps each vector field to its required pooling strategy.
var poolingFor = map[string]embedding.Strategy{
	vectorstore.VectorInitial:     "",
	vectorstore.VectorMaxPooling:  embedding.PoolMax,
	vectorstore.VectorMeanPooling: embedding.PoolMean,
}

// validate normalizes defaults and rejects malformed queries.
func (q *Query) validate() error {
	hasText := strings.TrimSpace(q.Text) != ""
	hasImage := len(q.ImagePNG) > 0
	if hasText == hasImage {
		return ErrInvalidQuery
	}

	if q.VectorName == "" {
		q.VectorName = vectorstore.VectorInitial
	}
	want, ok := poolingFor[q.VectorName]
	if !ok {
		return fmt.Errorf("%w: unknown vector field %q", ErrVectorMismatch, q.VectorName)
	}
	if q.Pooling != want {
		return fmt.Errorf("%w: field %q requires pooling %q, got %q",
			ErrVectorMismatch, q.VectorName, want, q.Pooling)
	}

	if q.Limit <= 0 {
		q.Limit = 6
	}
	return nil
}

// Search embeds the query, pools it when the target field requires it,
// and returns hits ordered by descending score with the point id as the
// tie-break.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	var (
		vectors [][]float32
		err     error
	)
	if text := strings.TrimSpace(q.Text); text != "" {
		vectors, err = e.embedder.EmbedText(ctx, text)
	} else {
		vectors, err = e.embedder.EmbedImage(ctx, q.ImagePNG)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieval: query embedding failed: %w", err)
	}

	if q.Pooling != "" {
		pooled, err := embedding.Pool(vectors, q.Pooling)
		if err != nil {
			return nil, fmt.Errorf("retrieval: query pooling failed: %w", err)
		}
		vectors = [][]float32{pooled}
	}

	hits, err := e.store.Search(ctx, q.VectorName, vectors, vectorstore.SearchOptions{
		Limit:          q.Limit,
		ScoreThreshold: q.ScoreThreshold,
		Filter:         &q.Filter,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{ID: h.ID, Score: h.Score, Payload: h.Payload})
	}

	// The store already orders by score; the id tie-break makes equal
	// scores deterministic across runs.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}
