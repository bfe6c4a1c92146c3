package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/manualqa-go/internal/answer"
	"github.com/54b3r/manualqa-go/internal/catalog"
	"github.com/54b3r/manualqa-go/internal/manual"
	"github.com/54b3r/manualqa-go/internal/retrieval"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8600).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// ArtifactsDir is the extraction output directory served under /pages/
	// so clients can fetch the table and figure files cited in answers.
	// If empty, /pages/ is not mounted.
	ArtifactsDir string
	// Registry receives the server's Prometheus metrics. If nil a fresh
	// registry is created, keeping repeated construction in tests hermetic.
	Registry *prometheus.Registry
}

// answerer is the interface handleAnswer calls to compose an answer.
// *answer.Composer satisfies it; tests inject a fake.
type answerer interface {
	// Answer composes a grounded answer with resolved references.
	Answer(ctx context.Context, question string) (*answer.Answer, error)
}

// searcher is the interface handleSearch calls to run a retrieval query.
// *retrieval.Engine satisfies it; tests inject a fake.
type searcher interface {
	// Search embeds the query and returns scored hits.
	Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error)
}

// Server is the HTTP server exposing the question answering API.
type Server struct {
	// answerer composes answers for POST /api/answer.
	answerer answerer
	// searcher runs raw retrieval for GET /api/search.
	searcher searcher
	// catalog lists indexed documents for GET /api/documents. May be nil.
	catalog *catalog.Catalog
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// answerRequest is the JSON body for POST /api/answer.
type answerRequest struct {
	// Question is the user's natural language question about the manual.
	Question string `json:"question"`
}

// answerResponse is the JSON response for POST /api/answer.
type answerResponse struct {
	// Answer is the composed answer text.
	Answer string `json:"answer"`
	// References lists the tables and figures backing the answer.
	References manual.References `json:"references"`
	// SubQuestions records how the question was decomposed.
	SubQuestions []string `json:"sub_questions,omitempty"`
}

// searchHit is one element of the GET /api/search response.
type searchHit struct {
	// ID is the point id of the hit.
	ID string `json:"id"`
	// Score is the similarity score.
	Score float32 `json:"score"`
	// DocumentID identifies the manual the page belongs to.
	DocumentID string `json:"document_id"`
	// PageNumber is the 1-based page number.
	PageNumber int `json:"page_number"`
}

// searchResponse is the JSON response for GET /api/search.
type searchResponse struct {
	// Query echoes the query text.
	Query string `json:"query"`
	// Hits lists the scored pages, best first.
	Hits []searchHit `json:"hits"`
}

// documentEntry is one element of the GET /api/documents response.
type documentEntry struct {
	// ID is the document identifier.
	ID string `json:"document_id"`
	// Title is the manual title.
	Title string `json:"title"`
	// Revision is the manual revision string.
	Revision string `json:"revision,omitempty"`
	// Manufacturer is the equipment manufacturer.
	Manufacturer string `json:"manufacturer,omitempty"`
	// Pages is the page count of the most recent indexing run.
	Pages int `json:"pages"`
	// LastIndexedAt is when the document was last indexed (RFC 3339).
	LastIndexedAt string `json:"last_indexed_at"`
}
