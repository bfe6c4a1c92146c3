package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ServiceEmbedder implements Embedder against a ColPali-style patch
// embedding service over HTTP. The service hosts the vision-language model
// and exposes one endpoint per input modality; this client never loads
// model weights itself. Safe for concurrent use.
type ServiceEmbedder struct {
	// baseURL is the embedding service base (e.g. "http://localhost:8500").
	baseURL string
	// model is the model name requested from the service.
	model string
	// device is the requested compute device: auto, cpu, or cuda.
	device string
	// renderDPI is the resolution the service rasterizes page inputs at.
	// Zero leaves the service default in effect.
	renderDPI int
	// dimensions is the fixed patch vector width D.
	dimensions int
	// client is the shared HTTP client. Embedding a dense page can take
	// tens of seconds on CPU, so the timeout is generous.
	client *http.Client

	// readyOnce guards the lazy readiness probe; the result is cached for
	// the process lifetime since model load state does not regress.
	readyOnce sync.Once
	readyErr  error
}

// ServiceConfig holds the settings for constructing a ServiceEmbedder.
type ServiceConfig struct {
	// BaseURL is the embedding service base URL.
	BaseURL string
	// Model is the vision-language model name (e.g. "vidore/colpali-v1.2").
	Model string
	// Device selects the compute device: auto (default), cpu, or cuda.
	Device string
	// RenderDPI is the resolution the service rasterizes page inputs at.
	// Zero uses the service default.
	RenderDPI int
	// Dimensions is the patch vector width (default 128).
	Dimensions int
	// Timeout bounds each embed request (default 120s).
	Timeout time.Duration
}

// NewServiceEmbedder constructs a ServiceEmbedder from the given config.
func NewServiceEmbedder(cfg *ServiceConfig) *ServiceEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 128
	}
	device := cfg.Device
	if device == "" {
		device = "auto"
	}
	return &ServiceEmbedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		device:     device,
		renderDPI:  cfg.RenderDPI,
		dimensions: dims,
		client:     &http.Client{Timeout: timeout},
	}
}

// Dimensions returns the fixed patch vector width D.
func (e *ServiceEmbedder) Dimensions() int { return e.dimensions }

// embedRequest is the JSON body sent to the /embed endpoint.
type embedRequest struct {
	Model  string `json:"model"`
	Device string `json:"device,omitempty"`
	// DPI is the rasterization resolution for image inputs. Omitted for
	// text queries, which involve no rendering.
	DPI int `json:"dpi,omitempty"`
	// Exactly one of Image (base64 PNG) or Text is set.
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

// embedResponse is the JSON body returned from the /embed endpoint.
type embedResponse struct {
	// Vectors is the ordered patch-level embedding sequence.
	Vectors [][]float32 `json:"vectors"`
	Error   string      `json:"error,omitempty"`
}

// healthResponse is the JSON body returned from the /health endpoint.
type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

// EmbedImage embeds one page image into patch vectors. Fails with
// ErrEmbedding for a zero-byte image and ErrModelUnavailable when the
// service cannot serve the model.
func (e *ServiceEmbedder) EmbedImage(ctx context.Context, png []byte) ([][]float32, error) {
	if len(png) == 0 {
		return nil, fmt.Errorf("%w: zero-byte image", ErrEmbedding)
	}
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	return e.embed(ctx, &embedRequest{
		Model:  e.model,
		Device: e.device,
		DPI:    e.renderDPI,
		Image:  base64.StdEncoding.EncodeToString(png),
	})
}

// EmbedText embeds one text query into patch vectors. Fails with
// ErrEmbedding when the text is empty after normalization.
func (e *ServiceEmbedder) EmbedText(ctx context.Context, text string) ([][]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmbedding)
	}
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	return e.embed(ctx, &embedRequest{
		Model:  e.model,
		Device: e.device,
		Text:   text,
	})
}

// Ping probes the embedding service for readiness. Used by GET /ready.
func (e *ServiceEmbedder) Ping(ctx context.Context) error {
	return e.probe(ctx)
}

// ready runs the lazy readiness probe exactly once and caches the result.
// The model loads lazily on the service side; probing up front turns a
// cryptic first-embed failure into a clear startup error.
func (e *ServiceEmbedder) ready(ctx context.Context) error {
	e.readyOnce.Do(func() {
		e.readyErr = e.probe(ctx)
	})
	return e.readyErr
}

// probe issues a GET /health request and maps a failure to
// ErrModelUnavailable.
func (e *ServiceEmbedder) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("embedding: create health request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("%w: bad health response: %v", ErrModelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK || health.Status != "ok" {
		return fmt.Errorf("%w: service reports %q (HTTP %d)", ErrModelUnavailable, health.Status, resp.StatusCode)
	}
	return nil
}

// embed posts one request to /embed and validates the returned vector shape.
func (e *ServiceEmbedder) embed(ctx context.Context, body *embedRequest) ([][]float32, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrEmbedding, result.Error)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, msg)
	}

	if len(result.Vectors) == 0 {
		return nil, fmt.Errorf("embedding: service returned no vectors")
	}
	for i, v := range result.Vectors {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("embedding: patch %d has width %d, expected %d", i, len(v), e.dimensions)
		}
	}
	return result.Vectors, nil
}
