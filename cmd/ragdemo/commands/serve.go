package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdemo-go/internal/config"
	"github.com/54b3r/ragdemo-go/internal/logging"
	"github.com/54b3r/ragdemo-go/internal/provider"
	"github.com/54b3r/ragdemo-go/internal/rag"
	"github.com/54b3r/ragdemo-go/internal/server"
	"github.com/54b3r/ragdemo-go/internal/store"
)

// NewServeCmd constructs the `ragdemo serve` command, which exposes the
// query engine over HTTP.
func NewServeCmd() *cobra.Command {
	var (
		host     string
		port     int
		storeDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query engine over HTTP",
		Long: `Start an HTTP server that answers questions against the built index.

Endpoints:
  POST /api/query   {"question": "...", "k": 4} → {"question","answer","sources"}
  GET  /api/health  liveness
  GET  /api/ready   vector store and model backend readiness
  GET  /metrics     Prometheus metrics

Set RAGDEMO_API_KEY to require "Authorization: Bearer <key>" on /api/query.

Examples:
  ragdemo serve
  ragdemo serve --port 9090
  VECTOR_STORE=qdrant ragdemo serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			dir := resolveStoreDir(storeDir)
			qe, err := newQueryEngine(ctx, log, dir, 0)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer qe.Close()

			pcfg := provider.ConfigFromEnv()
			pingers := []server.Pinger{
				server.NewLLMPinger(provider.NewHealthCheck(&pcfg), "llm:"+string(pcfg.Backend)),
			}
			switch vs := qe.store.(type) {
			case *store.SQLiteStore:
				pingers = append(pingers, server.NewStorePinger(vs))
			case *rag.QdrantStore:
				pingers = append(pingers, server.NewQdrantPinger(vs.Client()))
			}

			if !cmd.Flags().Changed("host") {
				host = config.EnvOr("RAGDEMO_SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = config.EnvInt("RAGDEMO_SERVER_PORT", port)
			}

			srv, err := server.New(qe.engine, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("RAGDEMO_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			log.Info("serve starting",
				slog.String("store", storeBackend()),
				slog.String("provider", string(pcfg.Backend)),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVar(&storeDir, "store-dir", "", "Vector store directory (default: $RAGDEMO_STORE_DIR or ./chroma-store)")

	return cmd
}
