package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/wiretrace/pkg/schema"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	ConfigFile string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <schema-file|A_B>",
		Short: "Validate a message schema",
		Long: `Validate a message schema document without running analysis.

The argument is either a path to a schema file or a namespace pair (A_B),
which is resolved in the configured schema directory.

Checks:
  - JSON syntax
  - Message entries are objects
  - Field start/length values are numbers
  - Escape tables are objects`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or TOML)")

	return cmd
}

func runValidate(cmd *cobra.Command, target string, opts *ValidateOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Validating %s...\n", target)

	sch, source, err := loadSchema(ctx, target, opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	st := sch.Stats()
	fmt.Fprintf(out, "\nSchema valid!\n")
	fmt.Fprintf(out, "  Source:        %s\n", source)
	fmt.Fprintf(out, "  Message types: %d\n", st.MessageTypes)
	fmt.Fprintf(out, "  Requests:      %d\n", st.Requests)
	fmt.Fprintf(out, "  Versions:      %d\n", st.Versions)
	fmt.Fprintf(out, "  Fields:        %d\n", st.Fields)
	fmt.Fprintf(out, "  Escapes:       %d\n", st.Escapes)

	fmt.Fprintf(out, "\nMessage types:\n")
	for i, t := range sch.Types() {
		msg, _ := sch.Lookup(t)
		line := fmt.Sprintf("  %d. %s", i+1, t)
		if msg.Description != "" {
			line += " " + msg.Description
		}
		if msg.ResponseType != "" {
			line += " -> " + msg.ResponseType
		}
		fmt.Fprintln(out, line)
	}

	return nil
}

// loadSchema reads target as a file when it exists, otherwise as a
// namespace pair in the configured schema directory.
func loadSchema(ctx context.Context, target, configFile string) (*schema.Schema, string, error) {
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		sch, err := schema.Load(target)
		return sch, target, err
	}

	a, b, err := schema.ParseNamespaceID(target)
	if err != nil {
		return nil, "", err
	}
	cfg, err := loadConfig(ctx, configFile)
	if err != nil {
		return nil, "", err
	}
	store := schema.NewFileStore(cfg.SchemaDir)
	sch, err := store.Resolve(ctx, a, b)
	return sch, store.Path(a, b), err
}
