package rag

import "fmt"

// CheckBatch validates an Upsert batch and returns the shared vector
// dimensionality. An empty batch has dimension 0.
func CheckBatch(docs []Document, embeddings [][]float32) (int, error) {
	if len(docs) != len(embeddings) {
		return 0, fmt.Errorf("rag: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(embeddings) == 0 {
		return 0, nil
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return 0, fmt.Errorf("rag: %w: empty vector for document %q", ErrDimensionMismatch, docs[0].ID)
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return 0, fmt.Errorf("rag: %w: document %q has %d dimensions, want %d",
				ErrDimensionMismatch, docs[i].ID, len(e), dim)
		}
	}
	return dim, nil
}
