package provider

import (
	"context"
	"os"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/ragdemo-go/internal/config"
)

// Defaults applied by ConfigFromEnv.
const (
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultOllamaModel     = "llama3"
	DefaultGeminiModel     = "gemini-2.0-flash"
	DefaultTemperature     = float32(0.2)
	defaultOllamaHost      = "http://localhost:11434"
	defaultAzureAPIVersion = "2024-10-21"
)

// ConfigFromEnv reads provider configuration from environment variables.
// MODEL_PROVIDER selects the backend; each provider uses its own native
// credential env vars.
//
// Environment variables:
//
//	MODEL_PROVIDER = openai | azure | ollama | gemini | ark (default: openai)
//
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o-mini), OPENAI_BASE_URL
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-10-21)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-2.0-flash)
//	Ark:     ARK_API_KEY, ARK_MODEL, ARK_BASE_URL
//
//	Shared:  MODEL_MAX_TOKENS (default: provider default), MODEL_TEMPERATURE (default: 0.2)
func ConfigFromEnv() Config {
	return Config{
		Backend: Backend(config.EnvOr("MODEL_PROVIDER", string(BackendOpenAI))),
		OpenAI: ProviderOpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   config.EnvOr("OPENAI_MODEL", DefaultOpenAIModel),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: config.EnvOr("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion),
		},
		Ollama: ProviderOllama{
			Host:  config.EnvOr("OLLAMA_HOST", defaultOllamaHost),
			Model: config.EnvOr("OLLAMA_MODEL", DefaultOllamaModel),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  config.EnvOr("GEMINI_MODEL", DefaultGeminiModel),
		},
		Ark: ProviderArk{
			APIKey:  os.Getenv("ARK_API_KEY"),
			Model:   os.Getenv("ARK_MODEL"),
			BaseURL: os.Getenv("ARK_BASE_URL"),
		},
		Tuning: SharedTuning{
			MaxTokens:   config.EnvInt("MODEL_MAX_TOKENS", 0),
			Temperature: config.EnvFloat32("MODEL_TEMPERATURE", DefaultTemperature),
		},
	}
}

// New constructs a chat model from an explicit Config, delegating to the
// appropriate backend factory function. It validates the config first so
// callers get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	default:
		return newOpenAI(ctx, cfg)
	}
}
