// Package cli provides the command-line interface for wiretrace.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/wiretrace/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wiretrace",
		Short: "Decode TCP message traces and match request/response transactions",
		Long: `wiretrace decodes the tcp_trace files written by message gateways.

For a namespace pair it:
  - Decodes every two-line trace record against the pair's message schema
  - Folds retransmitted requests into one transaction
  - Pairs each request with its response by node and transaction id
  - Writes an HTML report, a raw view and plain/sorted text logs

Schemas live in the schema directory as <A>_<B>.json.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
