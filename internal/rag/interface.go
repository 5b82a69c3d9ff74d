// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, embedding, and prompt
// assembly. Concrete backends (SQLite, Qdrant, OpenAI, Ollama) satisfy these
// interfaces so the pipelines never depend on a specific implementation.
package rag

import (
	"context"
)

// Document is a chunk of source text as stored in, and returned from, a
// vector store.
type Document struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin of the chunk (file path, URL, or "inline").
	Source string

	// Metadata holds arbitrary key-value pairs (kind, chunk_index, etc.).
	Metadata map[string]string

	// Distance is the cosine distance to the query vector (0 = identical).
	// Only set on documents returned from Query.
	Distance float32
}

// VectorStore persists chunk embeddings and answers nearest-neighbour queries.
// Implementations are not safe for concurrent writers.
type VectorStore interface {
	// Upsert replaces the whole store contents with docs. embeddings must be
	// parallel to docs: embeddings[i] is the vector for docs[i]. All vectors
	// must share one dimensionality.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Query returns the min(k, Count) documents nearest to vector, ordered by
	// ascending distance. Exactly equal distances keep insertion order.
	Query(ctx context.Context, vector []float32, k int) ([]Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches relevant context for a question. It combines embedding
// and vector search.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
