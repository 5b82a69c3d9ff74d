package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/ragdemo-go/internal/config"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         Config
		wantErr     string
		wantMissing bool
	}{
		// ── OpenAI ────────────────────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg: Config{
				Backend: BackendOpenAI,
				OpenAI:  ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"},
			},
		},
		{
			name:        "openai/missing api key",
			cfg:         Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{Model: "gpt-4o-mini"}},
			wantErr:     "OPENAI_API_KEY",
			wantMissing: true,
		},
		{
			name:    "openai/missing model",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test"}},
			wantErr: "OPENAI_MODEL",
		},

		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg: Config{
				Backend: BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{
					APIKey:     "key",
					Endpoint:   "https://my.openai.azure.com",
					Deployment: "gpt-4o",
					APIVersion: "2024-10-21",
				},
			},
		},
		{
			name: "azure/missing api key",
			cfg: Config{
				Backend: BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{
					Endpoint:   "https://my.openai.azure.com",
					Deployment: "gpt-4o",
				},
			},
			wantErr:     "AZURE_OPENAI_API_KEY",
			wantMissing: true,
		},
		{
			name: "azure/missing endpoint",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Deployment: "gpt-4o"},
			},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name: "azure/missing deployment",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Endpoint: "https://my.openai.azure.com"},
			},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},

		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
			},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: "http://localhost:11434"}},
			wantErr: "OLLAMA_MODEL",
		},

		// ── Gemini ────────────────────────────────────────────────────────────
		{
			name: "gemini/valid",
			cfg: Config{
				Backend: BackendGemini,
				Gemini:  ProviderGemini{APIKey: "AIza-test", Model: "gemini-2.0-flash"},
			},
		},
		{
			name:        "gemini/missing api key",
			cfg:         Config{Backend: BackendGemini, Gemini: ProviderGemini{Model: "gemini-2.0-flash"}},
			wantErr:     "GOOGLE_API_KEY",
			wantMissing: true,
		},

		// ── Ark ───────────────────────────────────────────────────────────────
		{
			name: "ark/valid",
			cfg:  Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "ark", Model: "doubao-pro"}},
		},
		{
			name:    "ark/missing model",
			cfg:     Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "ark"}},
			wantErr: "ARK_MODEL",
		},

		// ── Shared ────────────────────────────────────────────────────────────
		{
			name: "negative max tokens",
			cfg: Config{
				Backend: BackendOpenAI,
				OpenAI:  ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"},
				Tuning:  SharedTuning{MaxTokens: -1},
			},
			wantErr: "MODEL_MAX_TOKENS",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "bedrock"},
			wantErr: "unknown backend",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tc.wantErr)
			}
			if got := errors.Is(err, config.ErrMissingCredential); got != tc.wantMissing {
				t.Errorf("errors.Is(err, ErrMissingCredential) = %v, want %v", got, tc.wantMissing)
			}
		})
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MODEL_PROVIDER", "OPENAI_MODEL", "MODEL_TEMPERATURE", "MODEL_MAX_TOKENS"} {
		t.Setenv(k, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOpenAI {
		t.Errorf("Backend = %q, want openai", cfg.Backend)
	}
	if cfg.ModelName() != DefaultOpenAIModel {
		t.Errorf("ModelName() = %q, want %q", cfg.ModelName(), DefaultOpenAIModel)
	}
	if cfg.Tuning.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", cfg.Tuning.Temperature, DefaultTemperature)
	}
	if cfg.OpenAI.APIKey != "sk-env" {
		t.Errorf("APIKey = %q", cfg.OpenAI.APIKey)
	}
}

func TestNew_MissingCredentialBuildsNothing(t *testing.T) {
	t.Parallel()

	cfg := Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{Model: DefaultOpenAIModel}}
	m, err := New(context.Background(), &cfg)
	if !errors.Is(err, config.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if m != nil {
		t.Error("expected nil model on validation failure")
	}
}

func TestNew_OpenAI(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Backend: BackendOpenAI,
		OpenAI:  ProviderOpenAI{APIKey: "sk-test", Model: DefaultOpenAIModel},
		Tuning:  SharedTuning{Temperature: DefaultTemperature},
	}
	m, err := New(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m == nil {
		t.Fatal("expected a chat model")
	}
}

func TestIsReasoningModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		deployment string
		want       bool
	}{
		{"o1", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"o4-mini", true},
		{"O3-Mini", true}, // case-insensitive
		{"codex-mini", true},
		{"gpt-5.2-codex", false}, // "codex" not at start
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"gpt-4.1", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.deployment, func(t *testing.T) {
			t.Parallel()
			if got := isReasoningModel(tc.deployment); got != tc.want {
				t.Errorf("isReasoningModel(%q) = %v, want %v", tc.deployment, got, tc.want)
			}
		})
	}
}

func TestSupportsTemperature(t *testing.T) {
	t.Parallel()

	reasoning := Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{Deployment: "o3-mini"}}
	if reasoning.SupportsTemperature() {
		t.Error("o3-mini must not receive a temperature")
	}
	if reasoning.temperature() != nil {
		t.Error("temperature() must be nil for reasoning models")
	}

	ollama := Config{Backend: BackendOllama, Ollama: ProviderOllama{Model: "o1-lookalike"}}
	if !ollama.SupportsTemperature() {
		t.Error("non-OpenAI backends always accept temperature")
	}
}

func TestNewHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend Backend
		wantNil bool
	}{
		{BackendOpenAI, false},
		{BackendAzure, false},
		{BackendOllama, false},
		{BackendGemini, true},
		{BackendArk, true},
	}
	for _, tc := range tests {
		cfg := Config{Backend: tc.backend}
		if got := NewHealthCheck(&cfg); (got == nil) != tc.wantNil {
			t.Errorf("%s: NewHealthCheck nil = %v, want %v", tc.backend, got == nil, tc.wantNil)
		}
	}
}
