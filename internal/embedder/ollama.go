package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/ragdemo-go/internal/rag"
)

// ollamaMaxBatch bounds the inputs sent in one /api/embed call so a large
// build does not hold one request open for minutes on a CPU-only host.
const ollamaMaxBatch = 64

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint. It needs
// no credential and is safe for concurrent use.
type OllamaEmbedder struct {
	url    string
	model  string
	client *http.Client
}

// OllamaConfig configures NewOllamaEmbedder.
type OllamaConfig struct {
	Host  string // e.g. http://localhost:11434
	Model string // e.g. nomic-embed-text
	// HTTPClient defaults to a client with a 60s timeout.
	HTTPClient *http.Client
}

// NewOllamaEmbedder builds an embedder for cfg.Host.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &OllamaEmbedder{
		url:    strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:  cfg.Model,
		client: client,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order. Every vector in the
// result has the same length.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ollamaMaxBatch {
		end := min(start+ollamaMaxBatch, len(texts))
		vecs, err := e.post(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	for i := 1; i < len(out); i++ {
		if len(out[i]) != len(out[0]) {
			return nil, fmt.Errorf("ollama embedder: %w: input %d has %d dimensions, want %d",
				rag.ErrService, i, len(out[i]), len(out[0]))
		}
	}
	return out, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rag.ErrService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", rag.ErrService, err)
	}

	var result ollamaEmbedResponse
	decodeErr := json.Unmarshal(raw, &result)
	if resp.StatusCode/100 != 2 {
		msg := result.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", rag.ErrService, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", rag.ErrService, decodeErr)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d inputs, got %d embeddings",
			rag.ErrService, len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}
