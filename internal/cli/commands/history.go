package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/wiretrace/pkg/history"
	"github.com/ccollicutt/wiretrace/pkg/output"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	ConfigFile string
	Output     string
	Last       int
	Verbose    bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis runs",
		Long: `List the runs recorded in the history file, oldest first.

Only completed runs are recorded. The file keeps the most recent
history_limit runs (50 by default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or TOML)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.Last, "last", "l", 0, "Show only the last N runs")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show the trace files of each run")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter := output.NewFormatter(opts.Output, output.FormatOptions{Verbose: opts.Verbose})
	if formatter == nil {
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
	if opts.Last < 0 {
		return fmt.Errorf("--last must not be negative")
	}

	cfg, err := loadConfig(ctx, opts.ConfigFile)
	if err != nil {
		return err
	}
	if cfg.HistoryFile == "" {
		return fmt.Errorf("history is disabled (history_file is empty)")
	}

	store := history.NewFileStore(cfg.HistoryFile, history.WithCapacity(cfg.HistoryLimit))
	records, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if opts.Last > 0 && len(records) > opts.Last {
		records = records[len(records)-opts.Last:]
	}

	return formatter.FormatHistory(ctx, records, cmd.OutOrStdout())
}
