package embedder

import (
	"fmt"
	"net/http"
	"os"

	"github.com/54b3r/ragdemo-go/internal/config"
	"github.com/54b3r/ragdemo-go/internal/rag"
)

// Backend names accepted by EMBEDDING_PROVIDER.
const (
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendOllama = "ollama"
)

// Default embedding models per backend.
const (
	DefaultOpenAIModel = "text-embedding-3-large"
	DefaultOllamaModel = "nomic-embed-text"

	defaultOllamaHost      = "http://localhost:11434"
	defaultAzureAPIVersion = "2025-04-01-preview"
)

// Config is the resolved embedding configuration. Build it once with
// ConfigFromEnv and pass it to New.
type Config struct {
	// Backend is one of openai, azure, ollama.
	Backend string
	// Model is the embedding model (or Azure deployment) name.
	Model string
	// APIKey authenticates against openai or azure. Unused by ollama.
	APIKey string
	// Endpoint is the API base URL, Azure resource endpoint, or Ollama host.
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions overrides the model's default vector size (0 = default).
	Dimensions int
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// ConfigFromEnv resolves the embedding configuration using cascading
// defaults that inherit from the chat provider when embedding-specific
// overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER when it is an embedding-capable
//     backend, else openai
//  2. EMBEDDING_MODEL overrides the backend's default model
//  3. EMBEDDING_API_KEY overrides the inherited key (OPENAI_API_KEY / AZURE_OPENAI_API_KEY)
//  4. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  5. EMBEDDING_DIMENSIONS overrides the vector size
func ConfigFromEnv() Config {
	backend := os.Getenv("EMBEDDING_PROVIDER")
	if backend == "" {
		switch p := os.Getenv("MODEL_PROVIDER"); p {
		case BackendAzure, BackendOllama:
			backend = p
		default:
			backend = BackendOpenAI
		}
	}

	cfg := Config{
		Backend:    backend,
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		Dimensions: config.EnvInt("EMBEDDING_DIMENSIONS", 0),
	}

	switch backend {
	case BackendOpenAI:
		cfg.Model = config.EnvOr("EMBEDDING_MODEL", DefaultOpenAIModel)
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("OPENAI_BASE_URL")
		}
	case BackendAzure:
		cfg.Model = config.EnvOr("EMBEDDING_MODEL", DefaultOpenAIModel)
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		cfg.APIVersion = config.EnvOr("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion)
	case BackendOllama:
		cfg.Model = config.EnvOr("EMBEDDING_MODEL", DefaultOllamaModel)
		if cfg.Endpoint == "" {
			cfg.Endpoint = config.EnvOr("OLLAMA_HOST", defaultOllamaHost)
		}
	}
	return cfg
}

// Validate checks the configuration without touching the network. A missing
// API key yields an error wrapping config.ErrMissingCredential.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("embedder: %w: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY (check your .env file)",
				config.ErrMissingCredential)
		}
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("embedder: %w: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY",
				config.ErrMissingCredential)
		}
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case BackendOllama:
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: ollama requires OLLAMA_HOST or EMBEDDING_ENDPOINT")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: openai, azure, ollama)", c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("embedder: model must not be empty")
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("embedder: dimensions must not be negative, got %d", c.Dimensions)
	}
	return nil
}

// New validates cfg and constructs the matching rag.Embedder.
func New(cfg Config) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendOllama:
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       cfg.Endpoint,
			Model:      cfg.Model,
			HTTPClient: cfg.HTTPClient,
		}), nil
	case BackendAzure:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
			HTTPClient: cfg.HTTPClient,
		}), nil
	default:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			HTTPClient: cfg.HTTPClient,
		}), nil
	}
}
