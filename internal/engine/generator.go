// Package engine runs the query side of the pipeline: retrieve the nearest
// chunks, assemble the prompt and ask the chat model for an answer.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragdemo-go/internal/budget"
	"github.com/54b3r/ragdemo-go/internal/logging"
	"github.com/54b3r/ragdemo-go/internal/rag"
)

// GeneratorConfig holds per-call generation settings.
type GeneratorConfig struct {
	// Model is passed as model.WithModel when non-empty.
	Model string
	// Temperature is passed as model.WithTemperature when non-nil.
	Temperature *float32
	// Handlers are eino callback handlers (e.g. Langfuse) attached to each call.
	Handlers []callbacks.Handler
}

// Generator sends one assembled prompt to a chat model and returns the text.
type Generator struct {
	model model.BaseChatModel
	cfg   GeneratorConfig
}

// NewGenerator wraps m. It returns an error if m is nil.
func NewGenerator(m model.BaseChatModel, cfg GeneratorConfig) (*Generator, error) {
	if m == nil {
		return nil, fmt.Errorf("engine: chat model must not be nil")
	}
	return &Generator{model: m, cfg: cfg}, nil
}

// Generate sends prompt as a single user message. Failures are wrapped with
// rag.ErrService and are not retried.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if len(g.cfg.Handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      "ragdemo.generate",
			Type:      g.cfg.Model,
			Component: components.ComponentOfChatModel,
		}, g.cfg.Handlers...)
	}

	var opts []model.Option
	if g.cfg.Model != "" {
		opts = append(opts, model.WithModel(g.cfg.Model))
	}
	if g.cfg.Temperature != nil {
		opts = append(opts, model.WithTemperature(*g.cfg.Temperature))
	}

	msgs := []*schema.Message{schema.UserMessage(prompt)}
	logging.FromContext(ctx).Debug("engine: calling chat model",
		slog.String("model", g.cfg.Model),
		slog.Int("input_tokens_est", budget.EstimateMessages(msgs)),
	)

	resp, err := g.model.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", fmt.Errorf("engine: generation failed: %w: %w", rag.ErrService, err)
	}
	if resp == nil {
		return "", fmt.Errorf("engine: %w: chat model returned no message", rag.ErrService)
	}
	return resp.Content, nil
}
