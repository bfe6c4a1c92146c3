package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds connection parameters for the Qdrant-backed PageStore.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the collection name holding the indexed pages.
	Collection string

	// VectorSize is the patch vector width D shared by all three named
	// vector fields.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Timeout bounds each individual storage call. Exceeding it surfaces
	// ErrStorageTimeout instead of hanging indefinitely. Default 30s.
	Timeout time.Duration
}

// QdrantStore implements PageStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a QdrantStore. It does not touch the collection;
// call EnsureCollection before the first upsert or search.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// schema returns the three named-vector collection schema. The "initial"
// field carries the full patch sequence and is compared with MaxSim late
// interaction on the server; the pooled fields are flat cosine vectors.
func (s *QdrantStore) schema() map[string]*qdrant.VectorParams {
	return map[string]*qdrant.VectorParams{
		VectorInitial: {
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
			MultivectorConfig: &qdrant.MultiVectorConfig{
				Comparator: qdrant.MultiVectorComparator_MaxSim,
			},
		},
		VectorMaxPooling: {
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		},
		VectorMeanPooling: {
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		},
	}
}

// EnsureCollection creates the collection if absent. When the collection
// already exists its named-vector schema is compared against the expected
// one; any missing field, width difference, or multivector flag difference
// fails with ErrSchemaMismatch before any work proceeds.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return s.wrap("check collection existence", err)
	}
	if exists {
		return s.verifySchema(ctx)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig:  qdrant.NewVectorsConfigMap(s.schema()),
	})
	if err != nil {
		return s.wrap(fmt.Sprintf("create collection %q", s.cfg.Collection), err)
	}
	return nil
}

// verifySchema compares the live collection's named vectors against the
// expected schema.
func (s *QdrantStore) verifySchema(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return s.wrap("get collection info", err)
	}

	live := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()
	want := s.schema()

	if len(live) != len(want) {
		return fmt.Errorf("%w: collection %q has %d vector fields, expected %d",
			ErrSchemaMismatch, s.cfg.Collection, len(live), len(want))
	}
	for name, params := range want {
		got, ok := live[name]
		if !ok {
			return fmt.Errorf("%w: collection %q is missing vector field %q",
				ErrSchemaMismatch, s.cfg.Collection, name)
		}
		if got.GetSize() != params.GetSize() {
			return fmt.Errorf("%w: vector field %q has size %d, expected %d",
				ErrSchemaMismatch, name, got.GetSize(), params.GetSize())
		}
		if (got.GetMultivectorConfig() != nil) != (params.GetMultivectorConfig() != nil) {
			return fmt.Errorf("%w: vector field %q multivector flag differs",
				ErrSchemaMismatch, name)
		}
	}
	return nil
}

// Upsert stores a batch of points. Each point id is deterministic, so
// re-upserting overwrites in place.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qps := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qps = append(qps, &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				VectorInitial:     qdrant.NewVectorMulti(p.Initial),
				VectorMaxPooling:  qdrant.NewVector(p.MaxPooling...),
				VectorMeanPooling: qdrant.NewVector(p.MeanPooling...),
			}),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}

	ctx, cancel := s.deadline(ctx)
	defer cancel()

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         qps,
	})
	if err != nil {
		return s.wrap("upsert", err)
	}
	return nil
}

// Search runs a nearest-neighbor query against one named vector field.
// Ranking is entirely the engine's: MaxSim late interaction for the
// multivector field, cosine for the pooled fields. Results arrive ordered
// by descending score, truncated to the limit, with sub-threshold scores
// excluded server-side.
func (s *QdrantStore) Search(ctx context.Context, vectorName string, queryVectors [][]float32, opts SearchOptions) ([]Hit, error) {
	limit := uint64(10)
	if opts.Limit > 0 {
		limit = uint64(opts.Limit)
	}

	var query *qdrant.Query
	if vectorName == VectorInitial {
		query = qdrant.NewQueryMulti(queryVectors)
	} else {
		if len(queryVectors) != 1 {
			return nil, fmt.Errorf("vectorstore: pooled field %q requires exactly one query vector, got %d",
				vectorName, len(queryVectors))
		}
		query = qdrant.NewQuery(queryVectors[0]...)
	}

	req := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          query,
		Using:          &vectorName,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold > 0 {
		threshold := opts.ScoreThreshold
		req.ScoreThreshold = &threshold
	}
	if !opts.Filter.IsZero() {
		req.Filter = opts.Filter.toQdrant()
	}

	ctx, cancel := s.deadline(ctx)
	defer cancel()

	results, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, s.wrap("search", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:      r.GetId().GetUuid(),
			Score:   r.GetScore(),
			Payload: valueMapToAny(r.GetPayload()),
		})
	}
	return hits, nil
}

// CountDocumentPoints returns the exact number of points stored for one
// document id.
func (s *QdrantStore) CountDocumentPoints(ctx context.Context, documentID string) (uint64, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter:         documentFilter(documentID),
		Exact:          &exact,
	})
	if err != nil {
		return 0, s.wrap("count", err)
	}
	return count, nil
}

// DeleteDocument removes all points belonging to one document id.
func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
	})
	if err != nil {
		return s.wrap("delete document", err)
	}
	return nil
}

// Info returns collection statistics for the info command.
func (s *QdrantStore) Info(ctx context.Context) (*CollectionInfo, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return nil, s.wrap("get collection info", err)
	}

	fields := make(map[string]uint64)
	for name, params := range info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap() {
		fields[name] = params.GetSize()
	}

	return &CollectionInfo{
		Name:         s.cfg.Collection,
		PointCount:   info.GetPointsCount(),
		VectorFields: fields,
	}, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// deadline applies the per-call storage timeout.
func (s *QdrantStore) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

// wrap maps transport errors onto the package taxonomy: deadline errors
// become ErrStorageTimeout, missing collections become
// ErrCollectionNotFound, everything else is wrapped with the operation.
func (s *QdrantStore) wrap(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", ErrStorageTimeout, op, err)
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s: %v", ErrCollectionNotFound, op, err)
	default:
		return fmt.Errorf("vectorstore: %s: %w", op, err)
	}
}

// valueMapToAny converts a Qdrant payload into plain Go maps and slices so
// the rest of the system never touches protobuf value types.
func valueMapToAny(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

// valueToAny recursively converts one Qdrant value.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		// JSON-compatible mapping: numbers are float64 downstream.
		return float64(kind.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, valueToAny(item))
		}
		return out
	case *qdrant.Value_StructValue:
		return valueMapToAny(kind.StructValue.GetFields())
	default:
		return nil
	}
}
