package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/manualqa-go/internal/answer"
	"github.com/54b3r/manualqa-go/internal/embedding"
	"github.com/54b3r/manualqa-go/internal/manual"
	"github.com/54b3r/manualqa-go/internal/retrieval"
	"github.com/54b3r/manualqa-go/internal/vectorstore"
)

// ---------------------------------------------------------------------------
// Fakes for the answer and search handlers
// ---------------------------------------------------------------------------

// fakeAnswerer implements the answerer interface for tests.
type fakeAnswerer struct {
	ans *answer.Answer
	err error
}

func (f *fakeAnswerer) Answer(_ context.Context, _ string) (*answer.Answer, error) {
	return f.ans, f.err
}

// fakeSearcher implements the searcher interface and records the query.
type fakeSearcher struct {
	lastQuery retrieval.Query
	results   []retrieval.Result
	err       error
}

func (f *fakeSearcher) Search(_ context.Context, q retrieval.Query) ([]retrieval.Result, error) {
	f.lastQuery = q
	return f.results, f.err
}

// newTestServer builds a *Server with fakes and an isolated metrics registry.
func newTestServer() *Server {
	return &Server{
		answerer: &fakeAnswerer{},
		searcher: &fakeSearcher{},
		cfg:      &Config{Port: 8600},
		log:      slog.Default(),
		metrics:  newServerMetrics(prometheus.NewRegistry()),
	}
}

// ---------------------------------------------------------------------------
// POST /api/answer
// ---------------------------------------------------------------------------

func TestHandleAnswer_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader("not-json"))
	w := httptest.NewRecorder()

	s.handleAnswer(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleAnswer_MissingQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	s.handleAnswer(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleAnswer_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.answerer = &fakeAnswerer{ans: &answer.Answer{
		Text: "Torque to 240 ft-lb.",
		References: manual.References{
			Tables: []manual.TableReference{{
				ElementID:  "table-175-1",
				PageNumber: 175,
				PNGFile:    "page_175/tables/table-175-1.png",
				HTMLFile:   "page_175/tables/table-175-1.html",
			}},
			Figures: []manual.FigureReference{},
		},
		SubQuestions: []string{"what torque for boom pivot bolts"},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/answer",
		strings.NewReader(`{"question":"How tight should the boom pivot bolts be?"}`))
	w := httptest.NewRecorder()

	s.handleAnswer(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp answerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Torque to 240 ft-lb." {
		t.Errorf("answer = %q, want composed text", resp.Answer)
	}
	if len(resp.References.Tables) != 1 || resp.References.Tables[0].ElementID != "table-175-1" {
		t.Errorf("references = %+v, want one table citation", resp.References)
	}
	if len(resp.SubQuestions) != 1 {
		t.Errorf("sub-questions = %v, want 1", resp.SubQuestions)
	}
}

func TestHandleAnswer_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid query", retrieval.ErrInvalidQuery, http.StatusBadRequest},
		{"vector mismatch", retrieval.ErrVectorMismatch, http.StatusBadRequest},
		{"collection missing", vectorstore.ErrCollectionNotFound, http.StatusConflict},
		{"storage timeout", vectorstore.ErrStorageTimeout, http.StatusServiceUnavailable},
		{"model unavailable", embedding.ErrModelUnavailable, http.StatusServiceUnavailable},
		{"unexpected", context.Canceled, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer()
			s.answerer = &fakeAnswerer{err: tc.err}

			req := httptest.NewRequest(http.MethodPost, "/api/answer",
				strings.NewReader(`{"question":"anything"}`))
			w := httptest.NewRecorder()

			s.handleAnswer(w, req)

			if w.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, w.Code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// GET /api/search
// ---------------------------------------------------------------------------

func TestHandleSearch_MissingQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_BadLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=torque&limit=zero", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_Success(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []retrieval.Result{
		{
			ID:    "point-175",
			Score: 11.5,
			Payload: map[string]any{
				manual.FieldDocumentID: "jlg-1055-service",
				manual.FieldPageNumber: float64(175),
			},
		},
	}}
	s := newTestServer()
	s.searcher = searcher

	req := httptest.NewRequest(http.MethodGet,
		"/api/search?q=boom+pivot+torque&limit=3&threshold=5&document_id=jlg-1055-service", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	if searcher.lastQuery.Limit != 3 {
		t.Errorf("limit = %v, want 3", searcher.lastQuery.Limit)
	}
	if searcher.lastQuery.ScoreThreshold != 5 {
		t.Errorf("threshold = %v, want 5", searcher.lastQuery.ScoreThreshold)
	}
	if searcher.lastQuery.Filter.DocumentID != "jlg-1055-service" {
		t.Errorf("document filter = %q, want jlg-1055-service", searcher.lastQuery.Filter.DocumentID)
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Hits) != 1 {
		t.Fatalf("hits = %v, want 1", len(resp.Hits))
	}
	if resp.Hits[0].DocumentID != "jlg-1055-service" || resp.Hits[0].PageNumber != 175 {
		t.Errorf("hit = %+v, want payload fields extracted", resp.Hits[0])
	}
}

func TestHandleSearch_PooledVectorParam(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	s := newTestServer()
	s.searcher = searcher

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=torque&vector=max_pooling", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if searcher.lastQuery.VectorName != vectorstore.VectorMaxPooling {
		t.Errorf("vector = %q, want %q", searcher.lastQuery.VectorName, vectorstore.VectorMaxPooling)
	}
	if searcher.lastQuery.Pooling != embedding.PoolMax {
		t.Errorf("pooling = %q, want %q", searcher.lastQuery.Pooling, embedding.PoolMax)
	}
}

func TestHandleSearch_StoreErrorMapped(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.searcher = &fakeSearcher{err: vectorstore.ErrCollectionNotFound}

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=torque", nil)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/documents
// ---------------------------------------------------------------------------

func TestHandleDocuments_NoCatalog(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()

	s.handleDocuments(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string][]documentEntry
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if docs, ok := resp["documents"]; !ok || len(docs) != 0 {
		t.Errorf("documents = %v, want empty list", resp)
	}
}

// ---------------------------------------------------------------------------
// Constructor wiring
// ---------------------------------------------------------------------------

func TestNew_RequiresComposerAndEngine(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeSearcher{}, nil, &Config{}); err == nil {
		t.Errorf("New(nil composer) expected error, got nil")
	}
	if _, err := New(&fakeAnswerer{}, nil, nil, &Config{}); err == nil {
		t.Errorf("New(nil engine) expected error, got nil")
	}
}

func TestNew_ProtectedRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeAnswerer{ans: &answer.Answer{}}, &fakeSearcher{}, nil, &Config{
		APIKey:   "secret",
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, path := range []string{"/api/search?q=torque", "/api/documents"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:1234"
		w := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=torque", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authorized search: expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
}

func TestNew_HealthAndMetricsAreOpen(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeAnswerer{}, &fakeSearcher{}, nil, &Config{
		APIKey:   "secret",
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, path := range []string{"/api/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:1234"
		w := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without auth, got %d", path, w.Code)
		}
	}
}
