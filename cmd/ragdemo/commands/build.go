package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdemo-go/internal/config"
	"github.com/54b3r/ragdemo-go/internal/ingestion"
	"github.com/54b3r/ragdemo-go/internal/logging"
	"github.com/54b3r/ragdemo-go/internal/splitter"
)

// NewBuildCmd constructs the `ragdemo build` command, which splits the
// corpus, embeds every chunk and replaces the vector store contents.
func NewBuildCmd() *cobra.Command {
	var (
		storeDir     string
		files        []string
		urls         []string
		chunkSize    int
		chunkOverlap int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the vector index from the corpus",
		Long: `Split the corpus into overlapping chunks, embed them and write them to
the vector store. A rebuild replaces the previous index.

With no --file or --url the built-in three-sentence corpus is indexed.

Environment variables:
  OPENAI_API_KEY       Required for the default openai embedding backend
  EMBEDDING_PROVIDER   openai (default), azure, ollama
  VECTOR_STORE         sqlite (default) or qdrant
  RAGDEMO_STORE_DIR    sqlite store directory (default: ./chroma-store)

Examples:
  ragdemo build
  ragdemo build --file notes.md --file paper.pdf
  ragdemo build --url https://example.com/rag.md --store-dir ./index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			emb, embCfg, err := newEmbedder(log)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			sources := make([]ingestion.Source, 0, len(files)+len(urls))
			for _, f := range files {
				sources = append(sources, ingestion.FileSource(f))
			}
			for _, u := range urls {
				sources = append(sources, ingestion.URLSource(u))
			}
			if len(sources) == 0 {
				sources = ingestion.InlineSources(ingestion.DefaultCorpus...)
			}

			dir := resolveStoreDir(storeDir)
			vs, err := openStore(dir, true)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			defer vs.Close()

			if !cmd.Flags().Changed("chunk-size") {
				chunkSize = config.EnvInt("RAGDEMO_CHUNK_SIZE", splitter.DefaultChunkSize)
			}
			if !cmd.Flags().Changed("chunk-overlap") {
				chunkOverlap = config.EnvInt("RAGDEMO_CHUNK_OVERLAP", splitter.DefaultChunkOverlap)
			}
			pipeline, err := ingestion.NewPipeline(emb, vs, ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: chunkOverlap,
			})
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			log.Info("build starting",
				slog.Int("sources", len(sources)),
				slog.String("embedding_backend", embCfg.Backend),
				slog.String("embedding_model", embCfg.Model),
				slog.String("store", storeBackend()),
			)
			start := time.Now()
			report, err := pipeline.Build(ctx, sources, func(msg string) { log.Info(msg) })
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			log.Info("build complete",
				slog.Int("chunks", report.Chunks),
				slog.Duration("elapsed", time.Since(start)),
			)

			location := report.Location
			if location == "" {
				location = dir
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index built at %s\n", location)
			return nil
		},
	}

	cmd.Flags().StringVar(&storeDir, "store-dir", "", "Vector store directory (default: $RAGDEMO_STORE_DIR or ./chroma-store)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Text, markdown or PDF file to index (repeatable)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "HTTP(S) document to index (repeatable)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", splitter.DefaultChunkSize, "Maximum characters per chunk")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", splitter.DefaultChunkOverlap, "Characters shared by consecutive chunks")

	return cmd
}
