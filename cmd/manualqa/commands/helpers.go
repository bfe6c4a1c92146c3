package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/54b3r/manualqa-go/internal/embedding"
	"github.com/54b3r/manualqa-go/internal/vectorstore"
)

// defaultCollection is the Qdrant collection used when QDRANT_COLLECTION
// and --collection are both unset.
const defaultCollection = "manual-pages"

// buildStore connects to Qdrant using env configuration, with the
// collection name optionally overridden by a CLI flag.
func buildStore(collection string) (*vectorstore.QdrantStore, error) {
	if collection == "" {
		collection = getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
	}

	store, err := vectorstore.NewQdrantStore(&vectorstore.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: collection,
		VectorSize: uint64(embedding.DefaultDimensions()), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		Timeout:    time.Duration(getEnvInt("QDRANT_TIMEOUT_SEC", 30)) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return store, nil
}

// buildEmbedder constructs the embedding service client from env
// configuration, with the device and render DPI optionally overridden by
// CLI flags.
func buildEmbedder(device string, dpi int) *embedding.ServiceEmbedder {
	if device != "" {
		os.Setenv("EMBEDDING_DEVICE", device)
	}
	if dpi > 0 {
		os.Setenv("RENDER_DPI", strconv.Itoa(dpi))
	}
	return embedding.NewFromEnv()
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
