package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/ragdemo-go/internal/budget"
	"github.com/54b3r/ragdemo-go/internal/config"
	"github.com/54b3r/ragdemo-go/internal/embedder"
	"github.com/54b3r/ragdemo-go/internal/engine"
	"github.com/54b3r/ragdemo-go/internal/provider"
	"github.com/54b3r/ragdemo-go/internal/rag"
	"github.com/54b3r/ragdemo-go/internal/store"
	"github.com/54b3r/ragdemo-go/internal/tracing"
)

// Vector store backends selected by VECTOR_STORE.
const (
	storeSQLite = "sqlite"
	storeQdrant = "qdrant"
)

// storeBackend returns the configured vector store backend.
func storeBackend() string {
	return strings.ToLower(config.EnvOr("VECTOR_STORE", storeSQLite))
}

// resolveStoreDir applies flag → RAGDEMO_STORE_DIR → store.DefaultDir.
func resolveStoreDir(flag string) string {
	if flag != "" {
		return flag
	}
	return config.EnvOr("RAGDEMO_STORE_DIR", store.DefaultDir)
}

func qdrantConfigFromEnv() rag.QdrantConfig {
	return rag.QdrantConfig{
		Host:       config.EnvOr("QDRANT_HOST", "localhost"),
		Port:       config.EnvInt("QDRANT_PORT", 6334),
		Collection: config.EnvOr("QDRANT_COLLECTION", "ragdemo"),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     config.EnvBool("QDRANT_TLS"),
	}
}

// openStore opens the vector store. forBuild creates a missing sqlite store;
// otherwise a missing store yields rag.ErrStoreNotFound.
func openStore(dir string, forBuild bool) (rag.VectorStore, error) {
	switch b := storeBackend(); b {
	case storeSQLite:
		if forBuild {
			return store.Create(dir)
		}
		return store.OpenExisting(dir)
	case storeQdrant:
		return rag.NewQdrantStore(qdrantConfigFromEnv())
	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE %q (valid values: sqlite, qdrant)", b)
	}
}

// newEmbedder resolves and validates the embedding configuration. It makes
// no network call, so a missing credential fails before any other work.
func newEmbedder(log *slog.Logger) (rag.Embedder, embedder.Config, error) {
	cfg := embedder.ConfigFromEnv()
	if err := embedder.ValidateForRAG(cfg, log); err != nil {
		return nil, cfg, err
	}
	emb, err := embedder.New(cfg)
	if err != nil {
		return nil, cfg, err
	}
	log.Debug("embedder initialised",
		slog.String("backend", cfg.Backend),
		slog.String("model", cfg.Model),
	)
	return emb, cfg, nil
}

// providerConfig resolves and validates the chat model configuration
// without constructing a client.
func providerConfig() (provider.Config, error) {
	cfg := provider.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// queryEngine bundles everything a query needs so callers can release it.
type queryEngine struct {
	engine *engine.Engine
	store  rag.VectorStore
	flush  func()
}

// Close flushes traces and closes the store.
func (q *queryEngine) Close() {
	q.flush()
	_ = q.store.Close()
}

// newQueryEngine validates every credential first, then opens the store and
// wires retriever, generator and engine.
func newQueryEngine(ctx context.Context, log *slog.Logger, storeDir string, topK int) (*queryEngine, error) {
	pcfg, err := providerConfig()
	if err != nil {
		return nil, err
	}
	emb, _, err := newEmbedder(log)
	if err != nil {
		return nil, err
	}

	vs, err := openStore(storeDir, false)
	if err != nil {
		return nil, err
	}

	chatModel, err := provider.New(ctx, &pcfg)
	if err != nil {
		_ = vs.Close()
		return nil, err
	}
	log.Debug("chat model initialised",
		slog.String("backend", string(pcfg.Backend)),
		slog.String("model", pcfg.ModelName()),
	)

	genCfg := engine.GeneratorConfig{Model: pcfg.ModelName()}
	if pcfg.SupportsTemperature() {
		t := pcfg.Tuning.Temperature
		genCfg.Temperature = &t
	}
	flush := func() {}
	if handler, f, ok := tracing.Setup(tracing.ConfigFromEnv()); ok {
		genCfg.Handlers = []callbacks.Handler{handler}
		flush = f
		log.Info("langfuse tracing enabled")
	}
	gen, err := engine.NewGenerator(chatModel, genCfg)
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	if topK <= 0 {
		topK = config.EnvInt("RAGDEMO_TOP_K", rag.DefaultTopK)
	}
	retriever, err := rag.NewRetriever(emb, vs, topK)
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		Retriever:        retriever,
		Generator:        gen,
		TopK:             topK,
		MaxContextTokens: config.EnvInt("RAGDEMO_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
	})
	if err != nil {
		_ = vs.Close()
		return nil, err
	}
	return &queryEngine{engine: eng, store: vs, flush: flush}, nil
}
