package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragdemo-go/internal/provider"
)

// LLMPinger probes a model backend through a zero-token health check such as
// listing models. It satisfies the Pinger interface and is used by GET /api/ready.
type LLMPinger struct {
	// healthCheck is the backend probe. Nil means the backend has no cheap
	// probe and is reported healthy.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "llm:ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given probe and label.
func NewLLMPinger(hc provider.HealthCheckConfig, name string) *LLMPinger {
	return &LLMPinger{healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping runs the backend health check.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck == nil {
		return nil
	}
	if err := p.healthCheck.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
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
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// StoreProbe is implemented by *store.SQLiteStore.
type StoreProbe interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// StorePinger probes a local vector store and reports an empty index as
// not ready.
type StorePinger struct {
	store StoreProbe
}

// NewStorePinger wraps a store exposing Ping and Count.
func NewStorePinger(s StoreProbe) *StorePinger {
	return &StorePinger{store: s}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "vector_store" }

// Ping checks the database connection and that at least one record exists.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	n, err := p.store.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("index is empty (run `ragdemo build`)")
	}
	return nil
}
