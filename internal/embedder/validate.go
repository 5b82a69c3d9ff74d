package embedder

import (
	"log/slog"
	"strings"
)

// chatModelMarkers are name fragments of chat models. Pointing the embedding
// side at one of these usually yields errors or meaningless vectors.
var chatModelMarkers = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama2", "llama3", "llama-2", "llama-3",
	"mistral", "mixtral", "gemma", "phi-", "phi3", "qwen", "deepseek",
	"claude", "command-r", "solar", "vicuna", "falcon", "yi-",
}

// nativeDimensions lists the full output size of well-known embedding
// models. Only the text-embedding-3 family accepts a smaller Dimensions.
var nativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, m := range chatModelMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ValidateForRAG runs cfg.Validate and then warns about settings that are
// legal but almost certainly wrong for building or querying an index. Only
// the cfg.Validate error is returned.
func ValidateForRAG(cfg Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use an embedding model such as text-embedding-3-large or nomic-embed-text"),
		)
	}

	if native, ok := nativeDimensions[cfg.Model]; ok && cfg.Dimensions > 0 {
		switch {
		case cfg.Dimensions > native:
			log.Warn("embedder: EMBEDDING_DIMENSIONS exceeds the model's output size",
				slog.String("model", cfg.Model),
				slog.Int("requested", cfg.Dimensions),
				slog.Int("native", native),
			)
		case !strings.HasPrefix(cfg.Model, "text-embedding-3"):
			log.Warn("embedder: model ignores EMBEDDING_DIMENSIONS",
				slog.String("model", cfg.Model),
				slog.Int("requested", cfg.Dimensions),
			)
		}
	}

	log.Debug("embedder: configuration validated",
		slog.String("backend", cfg.Backend),
		slog.String("model", cfg.Model),
		slog.Int("dimensions", cfg.Dimensions),
	)
	return nil
}
