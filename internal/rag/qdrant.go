package rag

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/qdrant/go-client/qdrant"
)

// Reserved payload keys written next to the document metadata.
const (
	payloadContent = "content"
	payloadSource  = "source"
	payloadSeq     = "seq"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: ragdemo).
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant collection.
// Upsert drops and recreates the collection so a rebuild replaces it.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg QdrantConfig
}

// NewQdrantStore connects to Qdrant. The collection is not touched until the
// first Upsert or Query.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "ragdemo"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Client exposes the gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// Location describes where the collection lives.
func (s *QdrantStore) Location() string {
	return fmt.Sprintf("qdrant://%s:%d/%s", s.cfg.Host, s.cfg.Port, s.cfg.Collection)
}

// recreateCollection drops the collection if present and creates it empty
// with the given vector size.
func (s *QdrantStore) recreateCollection(ctx context.Context, size uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", s.cfg.Collection, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Upsert replaces the collection contents with docs. Document IDs must be
// UUID strings.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	dim, err := CheckBatch(docs, embeddings)
	if err != nil {
		return err
	}
	if dim == 0 {
		return fmt.Errorf("qdrant: refusing to build an empty collection")
	}
	if err := s.recreateCollection(ctx, uint64(dim)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			payloadContent: doc.Content,
			payloadSource:  doc.Source,
			payloadSeq:     int64(i),
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// qdrantTieMargin is the number of extra points fetched past k so equal
// scores at the cutoff can be ordered by insertion before truncating.
const qdrantTieMargin = 16

// Query performs a cosine similarity search and returns the k nearest
// documents. Equal distances are ordered by insertion, including ties that
// straddle the k-th position. A missing collection yields ErrStoreNotFound.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int) ([]Document, error) {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("qdrant: collection %q: %w", s.cfg.Collection, ErrStoreNotFound)
	}
	if k <= 0 {
		return []Document{}, nil
	}

	limit := uint64(k + qdrantTieMargin)
	var results []*qdrant.ScoredPoint
	for {
		results, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: search failed: %w", err)
		}
		if !tiedPastWindow(results, k, limit) {
			break
		}
		limit *= 2
	}

	hits := make([]rankedHit, 0, len(results))
	for _, r := range results {
		h := rankedHit{doc: Document{
			ID:       r.GetId().GetUuid(),
			Distance: 1 - r.GetScore(),
			Metadata: make(map[string]string),
		}}
		for key, v := range r.GetPayload() {
			switch key {
			case payloadContent:
				h.doc.Content = v.GetStringValue()
			case payloadSource:
				h.doc.Source = v.GetStringValue()
			case payloadSeq:
				h.seq = v.GetIntegerValue()
			default:
				h.doc.Metadata[key] = v.GetStringValue()
			}
		}
		hits = append(hits, h)
	}
	return rankHits(hits, k), nil
}

// rankedHit pairs a search result with its insertion sequence number.
type rankedHit struct {
	doc Document
	seq int64
}

// rankHits orders hits by distance then insertion sequence and keeps the
// first k. Qdrant does not order equal scores by insertion.
func rankHits(hits []rankedHit, k int) []Document {
	slices.SortStableFunc(hits, func(a, b rankedHit) int {
		if c := cmp.Compare(a.doc.Distance, b.doc.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	docs := make([]Document, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		docs = append(docs, h.doc)
	}
	return docs
}

// tiedPastWindow reports whether a full page of results ends on the same
// score as the k-th result, meaning more tied points may lie beyond limit.
func tiedPastWindow(results []*qdrant.ScoredPoint, k int, limit uint64) bool {
	if uint64(len(results)) < limit || len(results) <= k {
		return false
	}
	return results[len(results)-1].GetScore() == results[k-1].GetScore()
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
