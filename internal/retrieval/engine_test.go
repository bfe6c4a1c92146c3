package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/manualqa-go/internal/embedding"
	"github.com/54b3r/manualqa-go/internal/vectorstore"
)

// fakeEmbedder counts calls and returns a fixed patch sequence.
type fakeEmbedder struct {
	calls   int
	vectors [][]float32
	err     error
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, png []byte) ([][]float32, error) {
	f.calls++
	return f.vectors, f.err
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([][]float32, error) {
	f.calls++
	return f.vectors, f.err
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

// fakeStore records the last search and returns canned hits.
type fakeStore struct {
	vectorstore.PageStore

	calls        int
	lastVector   string
	lastQuery    [][]float32
	lastOpts     vectorstore.SearchOptions
	hits         []vectorstore.Hit
	err          error
}

func (f *fakeStore) Search(ctx context.Context, vectorName string, queryVectors [][]float32, opts vectorstore.SearchOptions) ([]vectorstore.Hit, error) {
	f.calls++
	f.lastVector = vectorName
	f.lastQuery = queryVectors
	f.lastOpts = opts
	return f.hits, f.err
}

func TestSearchRejectsMalformedQueries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   Query
		wantErr error
	}{
		{
			name:    "neither text nor image",
			query:   Query{},
			wantErr: ErrInvalidQuery,
		},
		{
			name:    "whitespace-only text",
			query:   Query{Text: "   "},
			wantErr: ErrInvalidQuery,
		},
		{
			name:    "both text and image",
			query:   Query{Text: "torque", ImagePNG: []byte{1}},
			wantErr: ErrInvalidQuery,
		},
		{
			name:    "unknown vector field",
			query:   Query{Text: "torque", VectorName: "median_pooling"},
			wantErr: ErrVectorMismatch,
		},
		{
			name:    "pooled field without pooling",
			query:   Query{Text: "torque", VectorName: vectorstore.VectorMaxPooling},
			wantErr: ErrVectorMismatch,
		},
		{
			name:    "multivector field with pooling",
			query:   Query{Text: "torque", Pooling: embedding.PoolMean},
			wantErr: ErrVectorMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			emb := &fakeEmbedder{}
			store := &fakeStore{}
			engine := NewEngine(emb, store)

			_, err := engine.Search(context.Background(), tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Search() error = %v, want %v", err, tt.wantErr)
			}
			if emb.calls != 0 {
				t.Errorf("embedder called %d times for a malformed query, want 0", emb.calls)
			}
			if store.calls != 0 {
				t.Errorf("store called %d times for a malformed query, want 0", store.calls)
			}
		})
	}
}

func TestSearchMultivectorPassesPatchSequence(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: [][]float32{{1, 2}, {3, 4}}}
	store := &fakeStore{hits: []vectorstore.Hit{{ID: "a", Score: 10}}}
	engine := NewEngine(emb, store)

	results, err := engine.Search(context.Background(), Query{Text: "boom pivot torque"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.lastVector != vectorstore.VectorInitial {
		t.Errorf("vector field = %v, want %v", store.lastVector, vectorstore.VectorInitial)
	}
	if len(store.lastQuery) != 2 {
		t.Errorf("query vectors = %v, want the unpooled patch sequence of 2", len(store.lastQuery))
	}
	if store.lastOpts.Limit != 6 {
		t.Errorf("default limit = %v, want 6", store.lastOpts.Limit)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("results = %v, want single hit a", results)
	}
}

func TestSearchPooledFieldSendsOneVector(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: [][]float32{{1, 5}, {3, 2}}}
	store := &fakeStore{}
	engine := NewEngine(emb, store)

	_, err := engine.Search(context.Background(), Query{
		Text:       "hydraulic schematic",
		VectorName: vectorstore.VectorMaxPooling,
		Pooling:    embedding.PoolMax,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.lastVector != vectorstore.VectorMaxPooling {
		t.Errorf("vector field = %v, want %v", store.lastVector, vectorstore.VectorMaxPooling)
	}
	if len(store.lastQuery) != 1 {
		t.Fatalf("query vectors = %v, want exactly 1 pooled vector", len(store.lastQuery))
	}
	want := []float32{3, 5}
	for d := range want {
		if store.lastQuery[0][d] != want[d] {
			t.Errorf("pooled vector[%d] = %v, want %v", d, store.lastQuery[0][d], want[d])
		}
	}
}

func TestSearchOrdersByScoreThenID(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: [][]float32{{1, 2}}}
	store := &fakeStore{hits: []vectorstore.Hit{
		{ID: "c", Score: 8},
		{ID: "b", Score: 12},
		{ID: "a", Score: 8},
	}}
	engine := NewEngine(emb, store)

	results, err := engine.Search(context.Background(), Query{Text: "torque"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	gotOrder := []string{results[0].ID, results[1].ID, results[2].ID}
	wantOrder := []string{"b", "a", "c"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Errorf("result order = %v, want %v", gotOrder, wantOrder)
			break
		}
	}
}

func TestSearchPropagatesEmbeddingError(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: embedding.ErrModelUnavailable}
	store := &fakeStore{}
	engine := NewEngine(emb, store)

	_, err := engine.Search(context.Background(), Query{Text: "torque"})
	if !errors.Is(err, embedding.ErrModelUnavailable) {
		t.Errorf("Search() error = %v, want ErrModelUnavailable", err)
	}
	if store.calls != 0 {
		t.Errorf("store called %d times after embedding failure, want 0", store.calls)
	}
}

func TestSearchPropagatesStoreError(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: [][]float32{{1, 2}}}
	store := &fakeStore{err: vectorstore.ErrCollectionNotFound}
	engine := NewEngine(emb, store)

	_, err := engine.Search(context.Background(), Query{Text: "torque"})
	if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("Search() error = %v, want ErrCollectionNotFound", err)
	}
}
