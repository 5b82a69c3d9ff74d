package rag

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

// fakeEmbedder returns a fixed vector and counts calls.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeStore records the last query.
type fakeStore struct {
	docs   []Document
	gotK   int
	gotVec []float32
}

func (f *fakeStore) Upsert(context.Context, []Document, [][]float32) error { return nil }
func (f *fakeStore) Count(context.Context) (int, error)                   { return len(f.docs), nil }
func (f *fakeStore) Close() error                                         { return nil }
func (f *fakeStore) Query(_ context.Context, vec []float32, k int) ([]Document, error) {
	f.gotVec, f.gotK = vec, k
	return f.docs[:min(k, len(f.docs))], nil
}

func TestAssemblePrompt(t *testing.T) {
	t.Parallel()

	docs := []Document{
		{Content: "RAG combines retrieval with generation."},
		{Content: "Chroma is a vector database."},
	}
	got, err := AssemblePrompt(context.Background(), docs, "What is RAG?")
	if err != nil {
		t.Fatalf("AssemblePrompt: %v", err)
	}

	want := "You are a helpful assistant.\n" +
		"Use the provided context to answer the question.\n" +
		"If the answer is not in the context, say you don't know.\n\n" +
		"Context:\n" +
		"RAG combines retrieval with generation.\n\nChroma is a vector database.\n\n" +
		"Question:\n" +
		"What is RAG?\n"
	if got != want {
		t.Errorf("prompt mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestAssemblePrompt_VerbatimQuestion(t *testing.T) {
	t.Parallel()

	question := "Does {context} in a question survive? 100% {yes}"
	got, err := AssemblePrompt(context.Background(), nil, question)
	if err != nil {
		t.Fatalf("AssemblePrompt: %v", err)
	}
	if !strings.Contains(got, "Question:\n"+question+"\n") {
		t.Errorf("question not inserted verbatim: %q", got)
	}
}

func TestAssemblePrompt_Deterministic(t *testing.T) {
	t.Parallel()

	docs := []Document{{Content: "a"}, {Content: "b"}}
	first, _ := AssemblePrompt(context.Background(), docs, "q")
	second, _ := AssemblePrompt(context.Background(), docs, "q")
	if first != second {
		t.Error("expected identical prompts for identical input")
	}
}

func TestRetriever_DefaultTopK(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vec: []float32{1, 0}}
	st := &fakeStore{docs: []Document{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}}}
	r, err := NewRetriever(emb, st, 0)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	docs, err := r.Retrieve(context.Background(), "question", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if st.gotK != DefaultTopK {
		t.Errorf("store queried with k=%d, want %d", st.gotK, DefaultTopK)
	}
	if len(docs) != DefaultTopK {
		t.Errorf("got %d docs, want %d", len(docs), DefaultTopK)
	}
	if emb.calls != 1 {
		t.Errorf("embedder called %d times, want 1", emb.calls)
	}
}

func TestRetriever_PropagatesServiceError(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: ErrService}
	r, err := NewRetriever(emb, &fakeStore{}, 4)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "q", 4); !errors.Is(err, ErrService) {
		t.Errorf("expected ErrService, got %v", err)
	}
}

func TestNewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &fakeStore{}, 4); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 4); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestCheckBatch(t *testing.T) {
	t.Parallel()

	docs := []Document{{ID: "a"}, {ID: "b"}}
	tests := []struct {
		name    string
		docs    []Document
		vecs    [][]float32
		wantDim int
		wantErr error
	}{
		{"ok", docs, [][]float32{{1, 2}, {3, 4}}, 2, nil},
		{"empty", nil, nil, 0, nil},
		{"mismatch", docs, [][]float32{{1, 2}, {3}}, 0, ErrDimensionMismatch},
		{"zero length", docs[:1], [][]float32{{}}, 0, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dim, err := CheckBatch(tt.docs, tt.vecs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dim != tt.wantDim {
				t.Errorf("dim = %d, want %d", dim, tt.wantDim)
			}
		})
	}

	if _, err := CheckBatch(docs, [][]float32{{1}}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestRankHits_TiesAtCutoffFollowInsertion(t *testing.T) {
	t.Parallel()

	// Qdrant returned the later-inserted tie first.
	hits := []rankedHit{
		{doc: Document{ID: "near", Distance: 0.1}, seq: 5},
		{doc: Document{ID: "tie-late", Distance: 0.3}, seq: 9},
		{doc: Document{ID: "tie-early", Distance: 0.3}, seq: 2},
		{doc: Document{ID: "far", Distance: 0.8}, seq: 0},
	}

	got := rankHits(hits, 2)
	var ids []string
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	if want := []string{"near", "tie-early"}; !slices.Equal(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	if n := len(rankHits(hits, 10)); n != len(hits) {
		t.Errorf("k beyond hits: got %d docs, want %d", n, len(hits))
	}
}

func TestTiedPastWindow(t *testing.T) {
	t.Parallel()

	points := func(scores ...float32) []*qdrant.ScoredPoint {
		out := make([]*qdrant.ScoredPoint, len(scores))
		for i, s := range scores {
			out[i] = &qdrant.ScoredPoint{Score: s}
		}
		return out
	}

	tests := []struct {
		name    string
		results []*qdrant.ScoredPoint
		k       int
		limit   uint64
		want    bool
	}{
		{"short page", points(0.9, 0.7, 0.7), 2, 4, false},
		{"full page ends below cutoff score", points(0.9, 0.7, 0.7, 0.5), 2, 4, false},
		{"full page still tied", points(0.9, 0.7, 0.7, 0.7), 2, 4, true},
		{"fewer results than k", points(0.9), 2, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tiedPastWindow(tt.results, tt.k, tt.limit); got != tt.want {
				t.Errorf("tiedPastWindow = %v, want %v", got, tt.want)
			}
		})
	}
}
