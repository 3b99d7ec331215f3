package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/wiretrace/pkg/config"
	"github.com/ccollicutt/wiretrace/pkg/history"
	"github.com/ccollicutt/wiretrace/pkg/output"
	"github.com/ccollicutt/wiretrace/pkg/parser"
	"github.com/ccollicutt/wiretrace/pkg/pipeline"
	"github.com/ccollicutt/wiretrace/pkg/schema"
	"github.com/ccollicutt/wiretrace/pkg/webhook"
)

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	ConfigFile string
	Namespace  string
	NamespaceA string
	NamespaceB string
	Output     string
	LogLevel   string
	Verbose    bool
	Quiet      bool

	NoHTML   bool
	NoPlain  bool
	NoSorted bool

	// MetricsFile receives the run metrics in Prometheus text format.
	MetricsFile string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <trace-file>...",
		Short: "Decode trace files and match request/response transactions",
		Long: `Decode tcp_trace files against the schema of a namespace pair, fold
retransmissions, pair requests with their responses and write the reports.

Trace files may be plain, gzip (.gz) or zstd (.zst) compressed, and may be
given as glob patterns (including **).

Artifacts written to the output directory:
  - HTML analysis report and its raw-view page
  - converted_<stamp>.log (decode order)
  - sorted_<stamp>.log (time order)

Exit codes:
  0 - Run completed
  1 - Run failed (no files, unknown schema, nothing decoded, render error)
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or TOML)")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "Namespace pair as A_B")
	cmd.Flags().StringVarP(&opts.NamespaceA, "namespace-a", "a", "", "First namespace")
	cmd.Flags().StringVarP(&opts.NamespaceB, "namespace-b", "b", "", "Second namespace")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show decode and match statistics and artifacts")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.NoHTML, "no-html", false, "Skip the HTML report")
	cmd.Flags().BoolVar(&opts.NoPlain, "no-plain", false, "Skip the decode-order text log")
	cmd.Flags().BoolVar(&opts.NoSorted, "no-sorted", false, "Skip the time-ordered text log")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write run metrics to this file (Prometheus text format)")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "always", "When to fire webhook (always|on_failure|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}

	namespaceA, namespaceB, err := resolveNamespaces(opts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx, opts.ConfigFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg, opts.LogLevel)
	if err != nil {
		return err
	}

	// Expand trace file globs
	files, err := parser.ExpandGlobs(args)
	if err != nil {
		return fmt.Errorf("expanding trace files: %w", err)
	}

	pipeOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.HistoryFile != "" {
		store := history.NewFileStore(cfg.HistoryFile, history.WithCapacity(cfg.HistoryLimit))
		pipeOpts = append(pipeOpts, pipeline.WithHistory(store))
	}

	var registry *prometheus.Registry
	if opts.MetricsFile != "" {
		registry = prometheus.NewRegistry()
		metrics, err := pipeline.NewMetrics(registry)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		pipeOpts = append(pipeOpts, pipeline.WithMetrics(metrics))
	}

	orchestrator := pipeline.New(schema.NewFileStore(cfg.SchemaDir), cfg.OutputDir, pipeOpts...)
	result := orchestrator.Run(ctx, pipeline.Request{
		NamespaceA: namespaceA,
		NamespaceB: namespaceB,
		Paths:      files,
		Options:    runOptions(cfg, opts),
	})

	report := output.NewReport(result, files, opts.ConfigFile, time.Now())

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if registry != nil {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			logger.Warn().Err(err).Str("file", opts.MetricsFile).Msg("writing metrics failed")
		}
	}

	// Send webhooks (errors logged but don't fail the run)
	sendWebhooks(ctx, cfg, opts, report)

	if report.Failed() {
		ExitCode = 1
	}

	return nil
}

// resolveNamespaces takes the pair from --namespace, or from -a and -b.
func resolveNamespaces(opts *AnalyzeOptions) (string, string, error) {
	if opts.Namespace != "" {
		if opts.NamespaceA != "" || opts.NamespaceB != "" {
			return "", "", fmt.Errorf("use either --namespace or --namespace-a/--namespace-b, not both")
		}
		return schema.ParseNamespaceID(opts.Namespace)
	}
	if opts.NamespaceA == "" || opts.NamespaceB == "" {
		return "", "", fmt.Errorf("a namespace pair is required (--namespace A_B or -a A -b B)")
	}
	return opts.NamespaceA, opts.NamespaceB, nil
}

// runOptions combines the configured outputs with the --no-* flags.
func runOptions(cfg *config.Config, opts *AnalyzeOptions) pipeline.Options {
	return pipeline.Options{
		GenerateHTML:   cfg.Outputs.HTML && !opts.NoHTML,
		GeneratePlain:  cfg.Outputs.Plain && !opts.NoPlain,
		GenerateSorted: cfg.Outputs.Sorted && !opts.NoSorted,
	}
}

func createFormatter(opts *AnalyzeOptions) (output.Formatter, error) {
	formatter := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if formatter == nil {
		return nil, fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
	return formatter, nil
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged to stderr but don't fail the run.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *AnalyzeOptions, report *output.Report) {
	webhooks := collectWebhooks(cfg, opts)

	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !shouldFireWebhook(wh.Trigger, report.Failed()) {
			continue
		}

		resp := client.Send(ctx, report, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			fmt.Fprintf(os.Stderr, "Webhook %s: sent (%d, %s)\n", name, resp.StatusCode, resp.Duration)
		} else {
			fmt.Fprintf(os.Stderr, "Webhook %s: failed (%v)\n", name, resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerAlways
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

// shouldFireWebhook determines if a webhook should fire for a run outcome.
func shouldFireWebhook(trigger config.WebhookTrigger, failed bool) bool {
	switch trigger {
	case config.WebhookTriggerNever:
		return false
	case config.WebhookTriggerOnFailure:
		return failed
	default:
		return true
	}
}
