// Package server implements the HTTP server that exposes the manual
// question answering API: answer composition, raw retrieval, document
// listing, readiness probes, Prometheus metrics, and static serving of
// the extracted page artifacts cited in answers.
// The server is started by the `manualqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/manualqa-go/internal/catalog"
	"github.com/54b3r/manualqa-go/internal/embedding"
	"github.com/54b3r/manualqa-go/internal/logging"
	"github.com/54b3r/manualqa-go/internal/manual"
	"github.com/54b3r/manualqa-go/internal/retrieval"
	"github.com/54b3r/manualqa-go/internal/vectorstore"
)

// New constructs a Server from the answer composer, retrieval engine,
// document catalog, and config. The catalog may be nil; GET /api/documents
// then returns an empty list.
func New(composer answerer, engine searcher, cat *catalog.Catalog, cfg *Config) (*Server, error) {
	if composer == nil {
		return nil, fmt.Errorf("server: answer composer must not be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("server: retrieval engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8600
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Answer composition makes several model and store calls.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	// Each server owns its registry so repeated construction in tests never
	// trips duplicate registration.
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		answerer: composer,
		searcher: engine,
		catalog:  cat,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(registry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: API key not set, authentication disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/answer", authMiddleware(cfg.APIKey, rl.middleware(http.HandlerFunc(s.handleAnswer))))
	mux.Handle("GET /api/search", authMiddleware(cfg.APIKey, rl.middleware(http.HandlerFunc(s.handleSearch))))
	mux.Handle("GET /api/documents", authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleDocuments)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if cfg.ArtifactsDir != "" {
		mux.Handle("/pages/", http.StripPrefix("/pages/", http.FileServer(http.Dir(cfg.ArtifactsDir))))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.metrics.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAnswer handles POST /api/answer. It composes a grounded answer
// with resolved table and figure references.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	ans, err := s.answerer.Answer(r.Context(), req.Question)
	outcome := "ok"
	if err != nil {
		outcome = outcomeFor(err)
		s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		log.Error("answer failed", slog.Any("error", err))
		writeAnswerError(w, err)
		return
	}
	s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	s.metrics.answerReferences.Observe(float64(len(ans.References.Tables) + len(ans.References.Figures)))

	writeJSON(w, http.StatusOK, answerResponse{
		Answer:       ans.Text,
		References:   ans.References,
		SubQuestions: ans.SubQuestions,
	})
}

// handleSearch handles GET /api/search. Query parameters: q (required),
// limit, threshold, vector (initial | max_pooling | mean_pooling),
// document_id.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	q := retrieval.Query{Text: r.URL.Query().Get("q")}
	if q.Text == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			http.Error(w, "threshold must be a number", http.StatusBadRequest)
			return
		}
		q.ScoreThreshold = float32(f)
	}
	if v := r.URL.Query().Get("vector"); v != "" {
		q.VectorName = v
		switch v {
		case vectorstore.VectorMaxPooling:
			q.Pooling = embedding.PoolMax
		case vectorstore.VectorMeanPooling:
			q.Pooling = embedding.PoolMean
		}
	}
	if v := r.URL.Query().Get("document_id"); v != "" {
		q.Filter.DocumentID = v
	}

	results, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		log.Error("search failed", slog.Any("error", err))
		writeAnswerError(w, err)
		return
	}

	resp := searchResponse{Query: q.Text, Hits: make([]searchHit, 0, len(results))}
	for _, res := range results {
		hit := searchHit{ID: res.ID, Score: res.Score}
		if v, ok := res.Payload[manual.FieldDocumentID].(string); ok {
			hit.DocumentID = v
		}
		if v, ok := res.Payload[manual.FieldPageNumber].(float64); ok {
			hit.PageNumber = int(v)
		}
		resp.Hits = append(resp.Hits, hit)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDocuments handles GET /api/documents, listing the indexed manuals
// from the catalog.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	entries := []documentEntry{}
	if s.catalog != nil {
		docs, err := s.catalog.Documents(r.Context())
		if err != nil {
			logging.FromContext(r.Context()).Error("catalog listing failed", slog.Any("error", err))
			http.Error(w, "catalog unavailable", http.StatusInternalServerError)
			return
		}
		for _, d := range docs {
			entries = append(entries, documentEntry{
				ID:            d.ID,
				Title:         d.Title,
				Revision:      d.Revision,
				Manufacturer:  d.Manufacturer,
				Pages:         d.Pages,
				LastIndexedAt: d.LastIndexedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": entries})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAnswerError maps pipeline errors onto HTTP status codes.
func writeAnswerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery), errors.Is(err, retrieval.ErrVectorMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		http.Error(w, "no indexed documents: run the index command first", http.StatusConflict)
	case errors.Is(err, vectorstore.ErrStorageTimeout), errors.Is(err, embedding.ErrModelUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// outcomeFor buckets an error for the answer outcome metric label.
func outcomeFor(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, vectorstore.ErrStorageTimeout):
		return "timeout"
	case errors.Is(err, retrieval.ErrInvalidQuery), errors.Is(err, retrieval.ErrVectorMismatch):
		return "bad_request"
	default:
		return "error"
	}
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
