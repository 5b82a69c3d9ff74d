// Package config provides layered configuration for ragdemo.
// Precedence, lowest to highest: defaults → .env file → YAML file → env vars.
// Environment variables always win, so CI and container workflows can
// override anything without touching files.
//
// YAML search order:
//  1. --config CLI flag (explicit path, must exist)
//  2. RAGDEMO_CONFIG environment variable
//  3. ~/.ragdemo/config.yaml
//  4. ./ragdemo.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the YAML file layout. Every leaf carries the name of the
// environment variable it feeds through its env tag.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ModelConfig selects and tunes the chat model that writes answers.
type ModelConfig struct {
	// Provider is one of openai, azure, ollama, gemini, ark.
	Provider    string  `yaml:"provider" env:"MODEL_PROVIDER"`
	MaxTokens   int     `yaml:"max_tokens" env:"MODEL_MAX_TOKENS"`
	Temperature float32 `yaml:"temperature" env:"MODEL_TEMPERATURE"`

	OpenAI struct {
		APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
		Model   string `yaml:"model" env:"OPENAI_MODEL"`
		BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	} `yaml:"openai"`

	Azure struct {
		APIKey     string `yaml:"api_key" env:"AZURE_OPENAI_API_KEY"`
		Endpoint   string `yaml:"endpoint" env:"AZURE_OPENAI_ENDPOINT"`
		Deployment string `yaml:"deployment" env:"AZURE_OPENAI_DEPLOYMENT"`
		APIVersion string `yaml:"api_version" env:"AZURE_OPENAI_API_VERSION"`
	} `yaml:"azure"`

	Ollama struct {
		Host  string `yaml:"host" env:"OLLAMA_HOST"`
		Model string `yaml:"model" env:"OLLAMA_MODEL"`
	} `yaml:"ollama"`

	Gemini struct {
		APIKey string `yaml:"api_key" env:"GOOGLE_API_KEY"`
		Model  string `yaml:"model" env:"GEMINI_MODEL"`
	} `yaml:"gemini"`

	Ark struct {
		APIKey  string `yaml:"api_key" env:"ARK_API_KEY"`
		Model   string `yaml:"model" env:"ARK_MODEL"`
		BaseURL string `yaml:"base_url" env:"ARK_BASE_URL"`
	} `yaml:"ark"`
}

// EmbeddingConfig configures the embedding side. Unset credentials and
// endpoints are inherited from the matching chat provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" env:"EMBEDDING_PROVIDER"`
	Model      string `yaml:"model" env:"EMBEDDING_MODEL"`
	Dimensions int    `yaml:"dimensions" env:"EMBEDDING_DIMENSIONS"`
	APIKey     string `yaml:"api_key" env:"EMBEDDING_API_KEY"`
	Endpoint   string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT"`
}

// StoreConfig selects the vector store: "sqlite" (default) or "qdrant".
type StoreConfig struct {
	Backend string `yaml:"backend" env:"VECTOR_STORE"`
	Dir     string `yaml:"dir" env:"RAGDEMO_STORE_DIR"`
}

type QdrantConfig struct {
	Host       string `yaml:"host" env:"QDRANT_HOST"`
	Port       int    `yaml:"port" env:"QDRANT_PORT"`
	Collection string `yaml:"collection" env:"QDRANT_COLLECTION"`
	APIKey     string `yaml:"api_key" env:"QDRANT_API_KEY"`
	TLS        bool   `yaml:"tls" env:"QDRANT_TLS"`
}

// RetrievalConfig holds chunking, top-k and prompt budget settings.
type RetrievalConfig struct {
	TopK         int `yaml:"top_k" env:"RAGDEMO_TOP_K"`
	ChunkSize    int `yaml:"chunk_size" env:"RAGDEMO_CHUNK_SIZE"`
	// ChunkOverlap is a pointer so an explicit 0 is kept.
	ChunkOverlap *int `yaml:"chunk_overlap" env:"RAGDEMO_CHUNK_OVERLAP"`
	// MaxContextTokens caps the estimated prompt size; negative disables trimming.
	MaxContextTokens int `yaml:"max_context_tokens" env:"RAGDEMO_MAX_CONTEXT_TOKENS"`
}

type ServerConfig struct {
	Host   string `yaml:"host" env:"RAGDEMO_SERVER_HOST"`
	Port   int    `yaml:"port" env:"RAGDEMO_SERVER_PORT"`
	APIKey string `yaml:"api_key" env:"RAGDEMO_API_KEY"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// TracingConfig holds Langfuse credentials.
type TracingConfig struct {
	PublicKey string `yaml:"public_key" env:"LANGFUSE_PUBLIC_KEY"`
	SecretKey string `yaml:"secret_key" env:"LANGFUSE_SECRET_KEY"`
	Host      string `yaml:"host" env:"LANGFUSE_HOST"`
}

// Load reads the first YAML file found (see package doc) and exports each
// non-zero value to its environment variable unless that variable is
// already set. Unknown YAML keys are rejected. It returns the path that was
// loaded, or "" when no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path, err := resolveConfigPath(explicitPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	cfg, err := parseFile(path)
	if err != nil {
		return "", err
	}

	applied := 0
	for key, val := range Flatten(cfg) {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return "", fmt.Errorf("config: applying %s: %w", key, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Flatten maps each non-zero leaf of cfg to its environment variable name.
// Zero values are omitted so they never mask a default. Pointer leaves are
// exported whenever they are set, zero included.
func Flatten(cfg *Config) map[string]string {
	out := make(map[string]string)
	flatten(reflect.ValueOf(cfg).Elem(), out)
	return out
}

func flatten(v reflect.Value, out map[string]string) {
	t := v.Type()
	for i := range t.NumField() {
		field, fv := t.Field(i), v.Field(i)
		if fv.Kind() == reflect.Struct {
			flatten(fv, out)
			continue
		}
		key := field.Tag.Get("env")
		if key == "" || fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			fv = fv.Elem()
		}
		out[key] = formatValue(fv)
	}
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return v.String()
	}
}

// resolveConfigPath returns the first config file that exists. An explicit
// path that does not exist is an error; the implicit locations are optional.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: --config %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := []string{os.Getenv("RAGDEMO_CONFIG")}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".ragdemo", "config.yaml"))
	}
	candidates = append(candidates, "ragdemo.yaml")

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}
