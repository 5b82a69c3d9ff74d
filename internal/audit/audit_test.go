package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"LANGFUSE_SECRET_KEY", "lf-secret", "set"},
		{"qdrant_api_key", "q", "set"},
		{"MODEL_PROVIDER", "azure", "azure"},
		{"MODEL_PROVIDER", "", "unset"},
		{"OPENAI_BASE_URL", "https://user:pw@proxy.internal/v1", "https://proxy.internal/v1"},
		{"OLLAMA_HOST", "http://localhost:11434", "http://localhost:11434"},
		{"RAGDEMO_STORE_DIR", "./chroma-store", "./chroma-store"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Parallel()
			if got := Redact(tt.key, tt.value); got != tt.want {
				t.Errorf("Redact(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestDisplayPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in, want string
	}{
		{"", "none"},
		{"/etc/ragdemo.yaml", "/etc/ragdemo.yaml"},
		{filepath.Join(home, ".ragdemo", "config.yaml"), "~/.ragdemo/config.yaml"},
	}
	for _, tt := range tests {
		if got := displayPath(tt.in); got != tt.want {
			t.Errorf("displayPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogCommandStart(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("VECTOR_STORE", "sqlite")
	t.Setenv("RAGDEMO_TOP_K", "")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "query", "")

	if strings.Contains(buf.String(), "sk-very-secret") {
		t.Fatalf("credential leaked into audit record: %s", buf.String())
	}

	var rec struct {
		Command    string            `json:"command"`
		ConfigFile string            `json:"config_file"`
		Model      map[string]string `json:"model"`
		Store      map[string]string `json:"store"`
		Retrieval  map[string]string `json:"retrieval"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decoding audit record: %v\n%s", err, buf.String())
	}
	if rec.Command != "query" || rec.ConfigFile != "none" {
		t.Errorf("command = %q, config_file = %q", rec.Command, rec.ConfigFile)
	}
	if got := rec.Model["OPENAI_API_KEY"]; got != "set" {
		t.Errorf("model.OPENAI_API_KEY = %q, want set", got)
	}
	if got := rec.Store["VECTOR_STORE"]; got != "sqlite" {
		t.Errorf("store.VECTOR_STORE = %q, want sqlite", got)
	}
	if got := rec.Retrieval["RAGDEMO_TOP_K"]; got != "unset" {
		t.Errorf("retrieval.RAGDEMO_TOP_K = %q, want unset", got)
	}
}
