package embedding

import (
	"os"
	"strconv"
	"time"
)

// Default embedding service settings. The service hosts the vision-language
// model; overrides come from the EMBEDDING_* environment variables.
const (
	defaultServiceURL = "http://localhost:8500"
	defaultModel      = "vidore/colpali-v1.2"
	// defaultDimensions is the patch vector width of the ColPali family.
	defaultDimensions = 128
	// defaultRenderDPI balances patch coverage of dense tables against
	// inference cost. Matches the extraction pipeline's page renders.
	defaultRenderDPI = 150
)

// DefaultDimensions returns the patch vector width used when configuring
// the vector store schema. EMBEDDING_DIMENSIONS takes precedence when set;
// callers that pre-create collections should use this rather than
// hardcoding a value.
func DefaultDimensions() int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	return defaultDimensions
}

// NewFromEnv constructs an Embedder from environment variables.
//
//	EMBEDDING_URL         = embedding service base URL (default: http://localhost:8500)
//	EMBEDDING_MODEL       = vision-language model name (default: vidore/colpali-v1.2)
//	EMBEDDING_DEVICE      = auto | cpu | cuda (default: auto)
//	EMBEDDING_DIMENSIONS  = patch vector width (default: 128)
//	EMBEDDING_TIMEOUT_SEC = per-request timeout in seconds (default: 120)
//	RENDER_DPI            = page rasterization resolution (default: 150)
func NewFromEnv() *ServiceEmbedder {
	return NewServiceEmbedder(&ServiceConfig{
		BaseURL:    getEnvOrDefault("EMBEDDING_URL", defaultServiceURL),
		Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultModel),
		Device:     getEnvOrDefault("EMBEDDING_DEVICE", "auto"),
		RenderDPI:  getEnvInt("RENDER_DPI", defaultRenderDPI),
		Dimensions: DefaultDimensions(),
		Timeout:    time.Duration(getEnvInt("EMBEDDING_TIMEOUT_SEC", 120)) * time.Second,
	})
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
