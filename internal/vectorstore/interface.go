// Package vectorstore defines the storage contract for indexed pages and
// its Qdrant implementation. Each page is one point with three named
// vectors: the patch-level multivector ("initial", scored server-side with
// late interaction) and two pooled variants ("max_pooling",
// "mean_pooling", plain cosine). The hard similarity geometry lives in the
// storage engine and is never re-derived client-side.
package vectorstore

import (
	"context"
	"errors"
)

// Named vector fields of the collection schema.
const (
	// VectorInitial is the patch-level multivector field (MaxSim comparator).
	VectorInitial = "initial"
	// VectorMaxPooling is the max-pooled summary vector field.
	VectorMaxPooling = "max_pooling"
	// VectorMeanPooling is the mean-pooled summary vector field.
	VectorMeanPooling = "mean_pooling"
)

// ErrCollectionNotFound indicates a search was issued before the collection
// was created. Fatal; surfaced to the caller before any work proceeds.
var ErrCollectionNotFound = errors.New("vectorstore: collection not found")

// ErrSchemaMismatch indicates the collection exists with an incompatible
// named-vector schema. Fatal; re-create the collection or fix the config.
var ErrSchemaMismatch = errors.New("vectorstore: collection schema mismatch")

// ErrStorageTimeout indicates a storage call exceeded its deadline. The
// core never retries silently — callers decide whether to retry so that
// persistent outages are not masked.
var ErrStorageTimeout = errors.New("vectorstore: storage timeout")

// Point is one page's storage materialization: a deterministic id, the
// three named vectors, and the full denormalized page payload.
type Point struct {
	// ID is the deterministic point id derived from document id + page
	// number; re-upserting the same id overwrites in place.
	ID string
	// Initial is the patch-level multivector embedding.
	Initial [][]float32
	// MaxPooling is the max-pooled summary vector.
	MaxPooling []float32
	// MeanPooling is the mean-pooled summary vector.
	MeanPooling []float32
	// Payload is the denormalized Document+Page+elements record.
	Payload map[string]any
}

// Hit is one search result: a point id, its similarity score, and the full
// stored payload.
type Hit struct {
	// ID is the matched point's id.
	ID string
	// Score is the similarity score assigned by the storage engine.
	Score float32
	// Payload is the stored page payload.
	Payload map[string]any
}

// SearchOptions bound and filter a similarity search.
type SearchOptions struct {
	// Limit caps the number of results (default 10 if zero).
	Limit int
	// ScoreThreshold excludes results scoring below it. Zero means no
	// threshold.
	ScoreThreshold float32
	// Filter optionally restricts candidates by payload fields, evaluated
	// server-side.
	Filter *Filter
}

// PageStore is the narrow contract over the vector database.
// Implementations must be safe for concurrent use at query time.
type PageStore interface {
	// EnsureCollection creates the collection with the three named-vector
	// schema if absent. Idempotent when the schema matches; fails with
	// ErrSchemaMismatch when present with an incompatible schema.
	EnsureCollection(ctx context.Context) error

	// Upsert stores a batch of points. Existing ids are overwritten in
	// place, which is how re-indexing achieves replace semantics.
	Upsert(ctx context.Context, points []Point) error

	// Search runs a nearest-neighbor query against the named vector field.
	// For VectorInitial, queryVectors is the full patch sequence and the
	// engine applies late-interaction scoring; for pooled fields it must
	// hold exactly one vector. Results are ordered by descending score and
	// truncated to the limit, excluding scores below the threshold.
	Search(ctx context.Context, vectorName string, queryVectors [][]float32, opts SearchOptions) ([]Hit, error)

	// CountDocumentPoints returns the number of stored points for one
	// document id.
	CountDocumentPoints(ctx context.Context, documentID string) (uint64, error)

	// DeleteDocument removes all points belonging to one document id.
	DeleteDocument(ctx context.Context, documentID string) error

	// Info returns collection statistics for diagnostics.
	Info(ctx context.Context) (*CollectionInfo, error)

	// Close releases the underlying connection.
	Close() error
}

// CollectionInfo summarizes the collection for the info command.
type CollectionInfo struct {
	// Name is the collection name.
	Name string
	// PointCount is the total number of stored points.
	PointCount uint64
	// VectorFields maps each named vector field to its configured width.
	VectorFields map[string]uint64
}
