// Package ingestion implements the index build pipeline: load each source,
// split it into overlapping chunks, embed every chunk in one batch and
// replace the vector store contents with the result. It backs the
// `ragdemo build` command.
package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragdemo-go/internal/rag"
	"github.com/54b3r/ragdemo-go/internal/splitter"
)

// chunkNamespace scopes the deterministic chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/54b3r/ragdemo-go/chunk"))

// Config holds the configuration for the build pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to splitter.DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Zero means chunks do not overlap.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each URL fetch. Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// MaxFetchBytes caps the size of a fetched document. Defaults to 10 MiB.
	MaxFetchBytes int64

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string

	// HTTPClient overrides the fetch client (tests).
	HTTPClient *http.Client
}

// BuildReport summarises a completed build.
type BuildReport struct {
	// Sources is the number of sources indexed.
	Sources int
	// Chunks is the number of records written to the store.
	Chunks int
	// Location is where the store lives, if the store reports one.
	Location string
}

// locator is implemented by stores that know their persistence location.
type locator interface {
	Location() string
}

// Pipeline orchestrates the load → split → embed → upsert flow.
type Pipeline struct {
	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// splitter cuts documents into chunks.
	splitter *splitter.Splitter

	// cfg holds the resolved pipeline configuration.
	cfg Config

	// httpClient is used for URL sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = splitter.DefaultChunkSize
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = 10 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ragdemo-go/1.0 (corpus ingestion)"
	}

	sp, err := splitter.New(splitter.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap})
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Pipeline{
		embedder:   embedder,
		store:      store,
		splitter:   sp,
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

// Build loads and splits every source, embeds all chunks in a single batch
// call and replaces the store contents. Sources are processed in order and
// the first error aborts the build before the store is touched.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Build(ctx context.Context, sources []Source, progress func(msg string)) (*BuildReport, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("ingestion: no sources to index")
	}

	var docs []rag.Document
	for _, src := range sources {
		progress(fmt.Sprintf("loading %s", src.Location))
		text, err := p.load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("ingestion: load failed for %s: %w", src.Location, err)
		}

		meta := InferMetadata(src)
		n := 0
		for c := range p.splitter.Split(text) {
			docs = append(docs, rag.Document{
				ID:      chunkID(src.Location, c.Index),
				Content: c.Text,
				Source:  src.Location,
				Metadata: map[string]string{
					"kind":        string(src.Kind),
					"format":      meta.Format,
					"host":        meta.Host,
					"chunk_index": strconv.Itoa(c.Index),
				},
			})
			n++
		}
		progress(fmt.Sprintf("split %s into %d chunks", src.Location, n))
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("ingestion: sources produced no text to index")
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	progress(fmt.Sprintf("embedding %d chunks", len(texts)))
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: embedding failed: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("ingestion: %w: expected %d embeddings, got %d",
			rag.ErrService, len(texts), len(embeddings))
	}

	if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
		return nil, fmt.Errorf("ingestion: upsert failed: %w", err)
	}

	report := &BuildReport{Sources: len(sources), Chunks: len(docs)}
	if l, ok := p.store.(locator); ok {
		report.Location = l.Location()
	}
	progress(fmt.Sprintf("indexed %d chunks from %d sources", report.Chunks, report.Sources))
	return report, nil
}

// chunkID generates a deterministic UUID for a chunk from its source
// location and chunk index. Qdrant requires UUID point IDs.
func chunkID(location string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(location+"#"+strconv.Itoa(index))).String()
}
