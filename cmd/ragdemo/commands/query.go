package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdemo-go/internal/engine"
	"github.com/54b3r/ragdemo-go/internal/logging"
)

// maxStdinQuestion caps a question read from stdin.
const maxStdinQuestion = 64 << 10

// NewQueryCmd constructs the `ragdemo query` command, which answers one
// question against a previously built index.
func NewQueryCmd() *cobra.Command {
	var (
		storeDir    string
		topK        int
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question using the built index",
		Long: `Embed the question, retrieve the nearest chunks from the vector store and
ask the chat model to answer using them as context.

With no argument the question "` + engine.DefaultQuestion + `" is asked.
Pass "-" to read the question from stdin.

Examples:
  ragdemo query
  ragdemo query "What is RAG?"
  echo "Which database is mentioned?" | ragdemo query -
  MODEL_PROVIDER=ollama ragdemo query -k 2 "What are agentic systems?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			question, err := readQuestion(args, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			qe, err := newQueryEngine(ctx, log, resolveStoreDir(storeDir), topK)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer qe.Close()

			ans, err := qe.engine.Ask(ctx, question, topK)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Q: %s\nA: %s\n", ans.Question, ans.Text)
			if showSources {
				fmt.Fprintln(out, "\nSources:")
				for i, d := range ans.Sources {
					fmt.Fprintf(out, "  [%d] %s (distance %.4f)\n", i+1, d.Source, d.Distance)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storeDir, "store-dir", "", "Vector store directory (default: $RAGDEMO_STORE_DIR or ./chroma-store)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: $RAGDEMO_TOP_K or 4)")
	cmd.Flags().BoolVar(&showSources, "show-sources", false, "Print the retrieved chunk sources after the answer")

	return cmd
}

// readQuestion returns the positional question, the default question, or
// the trimmed contents of stdin when the argument is "-".
func readQuestion(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 {
		return engine.DefaultQuestion, nil
	}
	if args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, maxStdinQuestion))
	if err != nil {
		return "", fmt.Errorf("reading question from stdin: %w", err)
	}
	q := strings.TrimSpace(string(b))
	if q == "" {
		return "", fmt.Errorf("no question on stdin")
	}
	return q, nil
}
