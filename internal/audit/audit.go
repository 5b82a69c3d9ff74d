// Package audit writes one structured record per CLI invocation describing
// the effective configuration: which chat and embedding backends, which
// vector store, which tuning knobs. Credentials appear as "set" or "unset"
// and never by value.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// secretSuffixes mark environment variables whose values are credentials.
var secretSuffixes = []string{"_API_KEY", "_SECRET_KEY", "_PUBLIC_KEY", "_TOKEN"}

// groups lists the variables recorded for every command, grouped by the
// component that reads them. Order is preserved in the output.
var groups = []struct {
	name string
	keys []string
}{
	{"model", []string{
		"MODEL_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT",
		"OLLAMA_HOST", "OLLAMA_MODEL", "GOOGLE_API_KEY", "GEMINI_MODEL",
		"ARK_API_KEY", "ARK_MODEL", "MODEL_TEMPERATURE", "MODEL_MAX_TOKENS",
	}},
	{"embedding", []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY",
		"EMBEDDING_ENDPOINT", "EMBEDDING_DIMENSIONS",
	}},
	{"store", []string{
		"VECTOR_STORE", "RAGDEMO_STORE_DIR", "QDRANT_HOST", "QDRANT_PORT",
		"QDRANT_COLLECTION", "QDRANT_API_KEY",
	}},
	{"retrieval", []string{
		"RAGDEMO_TOP_K", "RAGDEMO_MAX_CONTEXT_TOKENS",
		"RAGDEMO_CHUNK_SIZE", "RAGDEMO_CHUNK_OVERLAP",
	}},
	{"server", []string{"RAGDEMO_SERVER_HOST", "RAGDEMO_SERVER_PORT", "RAGDEMO_API_KEY"}},
	{"tracing", []string{"LANGFUSE_HOST", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"}},
}

// LogCommandStart records the command name, the config file in effect and
// the redacted environment, one slog group per component.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(groups)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", displayPath(configPath)),
	)
	for _, g := range groups {
		members := make([]any, 0, len(g.keys))
		for _, k := range g.keys {
			members = append(members, slog.String(k, Redact(k, os.Getenv(k))))
		}
		attrs = append(attrs, slog.Group(g.name, members...))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// Redact returns the loggable form of an environment value. Credentials
// collapse to "set" or "unset". URLs lose any embedded user info. Everything
// else is returned as is, or "unset" when empty.
func Redact(key, value string) string {
	if value == "" {
		return "unset"
	}
	if IsSecret(key) {
		return "set"
	}
	if u, err := url.Parse(value); err == nil && u.Scheme != "" && u.User != nil {
		u.User = nil
		return u.String()
	}
	return value
}

// IsSecret reports whether key names a credential.
func IsSecret(key string) bool {
	upper := strings.ToUpper(key)
	for _, s := range secretSuffixes {
		if strings.HasSuffix(upper, s) {
			return true
		}
	}
	return false
}

// displayPath abbreviates the home directory to "~".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
