package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/ragdemo-go/internal/logging"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

// DefaultRetriever embeds the question with the same Embedder used at build
// time and asks the VectorStore for its nearest chunks.
type DefaultRetriever struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
}

// NewRetriever wires embedder and store. A non-positive defaultTopK falls
// back to DefaultTopK.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	switch {
	case embedder == nil:
		return nil, errors.New("rag: embedder must not be nil")
	case store == nil:
		return nil, errors.New("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &DefaultRetriever{embedder: embedder, store: store, defaultTopK: defaultTopK}, nil
}

// Retrieve returns at most topK chunks ordered nearest first. topK <= 0
// means the retriever's default.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	start := time.Now()
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: %w: embedder returned %d vectors for one question", ErrService, len(vecs))
	}

	docs, err := r.store.Query(ctx, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: searching store: %w", err)
	}

	attrs := []any{
		slog.Int("top_k", topK),
		slog.Int("hits", len(docs)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if len(docs) > 0 {
		attrs = append(attrs, slog.Float64("nearest_distance", float64(docs[0].Distance)))
	}
	logging.FromContext(ctx).Debug("rag: retrieved", attrs...)
	return docs, nil
}
