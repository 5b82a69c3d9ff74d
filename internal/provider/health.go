package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// HealthCheckConfig probes a backend without generating tokens.
type HealthCheckConfig interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthCheck returns a zero-cost probe for the configured backend, or nil
// when the backend offers no cheap endpoint to call.
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	switch cfg.Backend {
	case BackendOpenAI:
		opts := []option.RequestOption{
			option.WithAPIKey(cfg.OpenAI.APIKey),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		return &modelsListCheck{client: openai.NewClient(opts...)}
	case BackendAzure:
		return &modelsListCheck{client: openai.NewClient(
			azure.WithEndpoint(cfg.AzureOpenAI.Endpoint, cfg.AzureOpenAI.APIVersion),
			azure.WithAPIKey(cfg.AzureOpenAI.APIKey),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		)}
	case BackendOllama:
		return &ollamaTagsCheck{host: strings.TrimRight(cfg.Ollama.Host, "/"), client: httpClient}
	default:
		return nil
	}
}

// modelsListCheck lists models on an OpenAI-compatible API. Listing is free
// and fails on bad credentials.
type modelsListCheck struct {
	client openai.Client
}

func (c *modelsListCheck) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// ollamaTagsCheck calls GET /api/tags on an Ollama server.
type ollamaTagsCheck struct {
	host   string
	client *http.Client
}

func (c *ollamaTagsCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
