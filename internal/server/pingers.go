package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// pingable is anything with a cheap reachability probe. The embedding
// service client satisfies it.
type pingable interface {
	Ping(ctx context.Context) error
}

// EmbedderPinger probes the embedding service's health endpoint. It
// satisfies the Pinger interface and is used by GET /api/ready.
type EmbedderPinger struct {
	// svc is the embedding service client to probe.
	svc pingable
}

// NewEmbedderPinger constructs an EmbedderPinger for the given client.
func NewEmbedderPinger(svc pingable) *EmbedderPinger {
	return &EmbedderPinger{svc: svc}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder" }

// Ping probes the embedding service's /health endpoint.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	if err := p.svc.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
