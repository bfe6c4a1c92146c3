// Package embedding wraps the external vision-language embedding model that
// converts page images and text queries into patch-level multi-vector
// embeddings, and provides the pooling operations that reduce a patch set to
// a single fixed-width vector. The model itself is a black box reached over
// HTTP; this package only owns the contract and the pooling math.
package embedding

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the underlying model cannot serve requests
// (service unreachable, weights not loaded, no compatible compute device).
// It is fatal: callers abort the operation rather than retrying per item.
var ErrModelUnavailable = errors.New("embedding: model unavailable")

// ErrEmbedding indicates a single malformed input (zero-byte image, empty
// text after normalization). It is recoverable per item: indexing skips the
// page and continues.
var ErrEmbedding = errors.New("embedding: invalid input")

// Embedder converts an image or a text query into an ordered sequence of
// fixed-width patch vectors. The sequence length varies with input
// complexity; the vector width is fixed by the model. Implementations must
// be deterministic for identical input and safe for concurrent use.
type Embedder interface {
	// EmbedImage embeds one page image (PNG bytes) into patch vectors.
	EmbedImage(ctx context.Context, png []byte) ([][]float32, error)
	// EmbedText embeds one text query into patch vectors.
	EmbedText(ctx context.Context, text string) ([][]float32, error)
	// Dimensions returns the fixed vector width D produced by the model.
	Dimensions() int
}
