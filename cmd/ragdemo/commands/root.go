// Package commands defines all Cobra CLI commands for the ragdemo binary.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdemo-go/internal/audit"
	"github.com/54b3r/ragdemo-go/internal/config"
	"github.com/54b3r/ragdemo-go/internal/logging"
)

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	var configPath string
	var envFile string

	root := &cobra.Command{
		Use:   "ragdemo",
		Short: "Build and query a minimal retrieval-augmented generation index",
		Long: `ragdemo indexes a small text corpus into a vector store and answers
questions about it with an LLM, using the retrieved chunks as context.

  ragdemo build            split, embed and store the corpus
  ragdemo query [question] retrieve the nearest chunks and generate an answer
  ragdemo serve            expose the query engine over HTTP

Credentials are read from the environment, a .env file or a YAML config file
(~/.ragdemo/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			if err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// LOG_LEVEL and LOG_FORMAT may have come from the files just loaded.
			log = logging.New()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = logging.WithLogger(ctx, log)
			cmd.SetContext(ctx)

			audit.LogCommandStart(ctx, log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragdemo/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultDotEnvPath, "Path to a .env file with credentials (missing file is ignored)")

	root.AddCommand(
		NewBuildCmd(),
		NewQueryCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
