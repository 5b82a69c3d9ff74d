package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/ragdemo-go/internal/budget"
	"github.com/54b3r/ragdemo-go/internal/logging"
	"github.com/54b3r/ragdemo-go/internal/rag"
)

// DefaultQuestion is asked when the CLI receives no question.
const DefaultQuestion = "Explain RAG to a junior backend developer."

// TextGenerator is satisfied by *Generator; tests substitute fakes.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config wires the query pipeline.
type Config struct {
	// Retriever embeds the question and queries the vector store.
	Retriever rag.Retriever
	// Generator produces the answer from the assembled prompt.
	Generator TextGenerator
	// TopK is used when Ask is called with k <= 0 (default rag.DefaultTopK).
	TopK int
	// MaxContextTokens caps the estimated prompt size; the farthest chunks
	// are dropped first. Zero disables trimming.
	MaxContextTokens int
}

// Answer is the result of one question.
type Answer struct {
	Question string
	Text     string
	// Prompt is the exact text sent to the model.
	Prompt string
	// Sources are the chunks used as context, nearest first.
	Sources []rag.Document
}

// Engine answers questions against a built index.
type Engine struct {
	cfg Config
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("engine: retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("engine: generator must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = rag.DefaultTopK
	}
	return &Engine{cfg: cfg}, nil
}

// Ask runs retrieve → assemble → generate for one question.
func (e *Engine) Ask(ctx context.Context, question string, k int) (*Answer, error) {
	log := logging.FromContext(ctx)
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("engine: question must not be empty")
	}
	if k <= 0 {
		k = e.cfg.TopK
	}

	start := time.Now()
	docs, err := e.cfg.Retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("engine: retrieve: %w", err)
	}
	log.Debug("engine: retrieved context",
		slog.Int("k", k),
		slog.Int("hits", len(docs)),
		slog.Duration("elapsed", time.Since(start)),
	)

	docs, err = e.fitContext(ctx, log, docs, question)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	prompt, err := rag.AssemblePrompt(ctx, docs, question)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	log.Debug("engine: prompt assembled", slog.Int("prompt_tokens_est", budget.Estimate(prompt)))

	text, err := e.cfg.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	log.Info("engine: answered",
		slog.Int("sources", len(docs)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &Answer{Question: question, Text: text, Prompt: prompt, Sources: docs}, nil
}

// fitContext drops the farthest chunks when the prompt would exceed the
// budget. The instruction text and question count against the budget.
func (e *Engine) fitContext(ctx context.Context, log *slog.Logger, docs []rag.Document, question string) ([]rag.Document, error) {
	if e.cfg.MaxContextTokens <= 0 || len(docs) == 0 {
		return docs, nil
	}
	frame, err := rag.AssemblePrompt(ctx, nil, question)
	if err != nil {
		return nil, err
	}
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	kept := budget.TrimContext(frame, contents, e.cfg.MaxContextTokens)
	if len(kept) < len(docs) {
		log.Warn("engine: context trimmed to fit prompt budget",
			slog.Int("retrieved", len(docs)),
			slog.Int("kept", len(kept)),
			slog.Int("max_tokens", e.cfg.MaxContextTokens),
		)
	}
	return docs[:len(kept)], nil
}
