package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdemo-go/internal/version"
)

// NewVersionCmd constructs the `ragdemo version` subcommand. Values are
// injected at build time via -ldflags.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragdemo version, git commit, and build date",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
