package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/wiretrace/pkg/config"
	"github.com/ccollicutt/wiretrace/pkg/detector"
	"github.com/ccollicutt/wiretrace/pkg/parser"
	"github.com/ccollicutt/wiretrace/pkg/schema"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	ConfigFile string
	Namespace  string
	SampleSize int
	Verbose    bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [trace-file]...",
		Short: "Diagnose configuration, schemas and trace files",
		Long: `Diagnose common setup problems before running analysis.

This command checks:
- Config file syntax and structure
- Schema directory contents
- The schema of a namespace pair (with --namespace)
- Trace file shape, time span and schema coverage
- Output directory and webhooks

Example:
  wiretrace diagnose -c wiretrace.yaml
  wiretrace diagnose -n CORE_EDGE 'traces/**/tcp_trace.*'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			results := runDiagnose(ctx, args, opts)
			printDiagnostics(cmd.OutOrStdout(), results, opts)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or TOML)")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "Namespace pair (A_B) used for schema coverage")
	cmd.Flags().IntVar(&opts.SampleSize, "sample", 200, "Lines sampled per trace file")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, files []string, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	// 1. Configuration
	cfg, cfgResults := checkConfig(ctx, opts.ConfigFile)
	results = append(results, cfgResults...)
	if cfg == nil {
		return results
	}

	// 2. Schema directory
	results = append(results, checkSchemaDir(cfg))

	// 3. Schema for the requested namespace pair
	var sch *schema.Schema
	if opts.Namespace != "" {
		var result DiagnosticResult
		sch, result = checkNamespace(ctx, cfg, opts.Namespace)
		results = append(results, result)
	}

	// 4. Trace files
	if len(files) > 0 {
		results = append(results, checkTraceFiles(ctx, files, sch, opts)...)
	}

	// 5. Output directory
	results = append(results, checkOutputDir(cfg))

	// 6. Webhooks
	results = append(results, checkWebhooks(cfg, opts)...)

	return results
}

func checkConfig(ctx context.Context, path string) (*config.Config, []DiagnosticResult) {
	if path == "" {
		cfg, err := config.LoadOrDefault(ctx, "")
		if err != nil {
			return nil, []DiagnosticResult{{
				Check:   "Config",
				Status:  "error",
				Message: fmt.Sprintf("Invalid default configuration: %v", err),
				Suggests: []string{
					"Check the WIRETRACE_* environment variables",
				},
			}}
		}
		return cfg, []DiagnosticResult{{
			Check:   "Config",
			Status:  "ok",
			Message: "No config file given, using defaults",
			Details: configDetails(cfg),
		}}
	}

	results := []DiagnosticResult{checkConfigExists(path)}
	if results[0].Status == "error" {
		return nil, results
	}

	cfg, result := checkConfigParseable(ctx, path)
	return cfg, append(results, result)
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Omit --config to run with the default configuration",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			result.Suggests = []string{"Check TOML syntax - strings must be quoted"}
		default:
			result.Suggests = []string{"Check YAML syntax - ensure proper indentation (use spaces, not tabs)"}
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed successfully"
	result.Details = configDetails(cfg)
	return cfg, result
}

func configDetails(cfg *config.Config) []string {
	return []string{
		fmt.Sprintf("Schema dir: %s", cfg.SchemaDir),
		fmt.Sprintf("Output dir: %s", cfg.OutputDir),
		fmt.Sprintf("History: %s (limit %d)", cfg.HistoryFile, cfg.HistoryLimit),
		fmt.Sprintf("Log level: %s", cfg.LogLevel),
	}
}

func checkSchemaDir(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Schema Directory: %s", cfg.SchemaDir),
	}

	ids, err := schema.NewFileStore(cfg.SchemaDir).List()
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot read schema directory: %v", err)
		result.Suggests = []string{
			"Set schema_dir in the config or WIRETRACE_SCHEMA_DIR",
		}
		return result
	}
	if len(ids) == 0 {
		result.Status = "warning"
		result.Message = "No schema files found"
		result.Suggests = []string{
			"Schema files are named <A>_<B>.json",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("%d namespace pair(s)", len(ids))
	result.Details = ids
	return result
}

func checkNamespace(ctx context.Context, cfg *config.Config, id string) (*schema.Schema, DiagnosticResult) {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Schema: %s", id),
	}

	a, b, err := schema.ParseNamespaceID(id)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		return nil, result
	}

	store := schema.NewFileStore(cfg.SchemaDir)
	sch, err := store.Resolve(ctx, a, b)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		if errors.Is(err, schema.ErrNotFound) {
			result.Suggests = []string{
				fmt.Sprintf("Create %s", store.Path(a, b)),
			}
		} else {
			result.Suggests = []string{
				fmt.Sprintf("Run 'wiretrace validate %s' for details", store.Path(a, b)),
			}
		}
		return nil, result
	}

	st := sch.Stats()
	result.Status = "ok"
	result.Message = fmt.Sprintf("%d message type(s), %d request type(s)", st.MessageTypes, st.Requests)
	result.Details = []string{
		fmt.Sprintf("Versions: %d", st.Versions),
		fmt.Sprintf("Fields: %d", st.Fields),
		fmt.Sprintf("Escapes: %d", st.Escapes),
	}
	if st.Requests == 0 {
		result.Status = "warning"
		result.Suggests = []string{
			"No message type declares a response type; no transactions will be matched",
		}
	}
	return sch, result
}

func checkTraceFiles(ctx context.Context, patterns []string, sch *schema.Schema, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	files, err := parser.ExpandGlobs(patterns)
	if err != nil {
		return append(results, DiagnosticResult{
			Check:   "Trace Files",
			Status:  "error",
			Message: err.Error(),
		})
	}

	detOpts := []detector.Option{detector.WithSampleSize(opts.SampleSize)}
	if sch != nil {
		detOpts = append(detOpts, detector.WithSchema(sch))
	}
	d := detector.New(detOpts...)

	readable := 0
	for _, file := range files {
		result := checkTraceFile(ctx, d, file, opts)
		if result.Status != "error" {
			readable++
		}
		results = append(results, result)
	}

	if readable == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Trace Files Summary",
			Status:  "error",
			Message: "No readable trace files found",
			Suggests: []string{
				"Ensure at least one trace file exists and is readable",
			},
		})
	}

	return results
}

func checkTraceFile(ctx context.Context, d *detector.Detector, file string, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Trace File: %s", file),
	}

	info, err := os.Stat(file)
	switch {
	case os.IsNotExist(err):
		result.Status = "error"
		result.Message = "File does not exist"
		result.Suggests = []string{"Check the trace file path or glob pattern"}
		return result
	case err != nil:
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access file: %v", err)
		return result
	case info.IsDir():
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		result.Suggests = []string{"Use a glob pattern such as dir/**/tcp_trace.*"}
		return result
	case info.Size() == 0:
		result.Status = "warning"
		result.Message = "File is empty (0 bytes)"
		return result
	}

	det, err := d.DetectFromFile(ctx, file)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot read file: %v", err)
		return result
	}

	result.Details = append(result.Details,
		fmt.Sprintf("Compression: %s", parser.DetectCompression(file)),
		fmt.Sprintf("Sampled %d lines, %d records, %d heartbeats", det.SampledLines, det.HeaderLines, det.Heartbeats),
	)
	if best := det.BestMatch(); best != nil && opts.Verbose {
		result.Details = append(result.Details, fmt.Sprintf("Most common line: %s", best.Shape.Name))
	}

	if !det.LooksLikeTrace() {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Only %.0f%% of sampled lines are trace records", det.Coverage*100)
		result.Suggests = []string{
			"Headers look like: DD.MM.YY hh:mm:ss.mmm Input: Node 3, ...",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Trace records cover %.0f%% of sampled lines", det.Coverage*100)

	if span, err := scanTraceSpan(ctx, file); err == nil && span.Timestamped > 0 {
		result.Details = append(result.Details,
			fmt.Sprintf("Span: %s to %s (%d lines)",
				span.First.Format(parser.TraceTimestampLayout),
				span.Last.Format(parser.TraceTimestampLayout),
				span.Lines))
		if span.OutOfOrder > 0 {
			result.Details = append(result.Details,
				fmt.Sprintf("%d header(s) earlier than the one before", span.OutOfOrder))
		}
	}

	if cov := det.Schema; cov != nil {
		share := cov.KnownShare()
		result.Details = append(result.Details,
			fmt.Sprintf("Schema knows %.0f%% of sampled message types", share*100))
		if len(cov.UnknownTypes) > 0 {
			result.Status = "warning"
			result.Details = append(result.Details, "Unknown types: "+strings.Join(sortedKeys(cov.UnknownTypes), ", "))
		}
		if cov.EscapeMisses > 0 {
			result.Details = append(result.Details, fmt.Sprintf("Escape misses: %d", cov.EscapeMisses))
		}
	}

	return result
}

// traceSpan summarizes the timestamps of a whole trace file.
type traceSpan struct {
	Lines       int
	Timestamped int
	OutOfOrder  int
	First       time.Time
	Last        time.Time
}

// scanTraceSpan streams a trace file and records the time range of its
// headers.
func scanTraceSpan(ctx context.Context, path string) (traceSpan, error) {
	var span traceSpan

	source := parser.NewFileSource([]string{path})
	defer source.Close()
	extractor := parser.NewTraceTimestampExtractor()

	var prev time.Time
	for {
		line, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return span, nil
		}
		if err != nil {
			return span, err
		}
		span.Lines++

		ts, err := extractor.Extract(line.Content)
		if err != nil {
			continue
		}
		if span.Timestamped == 0 || ts.Before(span.First) {
			span.First = ts
		}
		if ts.After(span.Last) {
			span.Last = ts
		}
		if !prev.IsZero() && ts.Before(prev) {
			span.OutOfOrder++
		}
		prev = ts
		span.Timestamped++
	}
}

func checkOutputDir(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Output Directory: %s", cfg.OutputDir),
	}

	info, err := os.Stat(cfg.OutputDir)
	switch {
	case os.IsNotExist(err):
		result.Status = "ok"
		result.Message = "Does not exist yet, will be created on the first run"
	case err != nil:
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access output directory: %v", err)
	case !info.IsDir():
		result.Status = "error"
		result.Message = "Path exists but is not a directory"
	default:
		result.Status = "ok"
		result.Message = "Exists"
	}
	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== wiretrace Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nSetup is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nSetup looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			} else if u.Host == "" {
				issues = append(issues, "URL must have a host")
			}
		}

		if wh.Trigger != "" {
			switch wh.Trigger {
			case config.WebhookTriggerAlways, config.WebhookTriggerOnFailure, config.WebhookTriggerNever:
			default:
				issues = append(issues, fmt.Sprintf("Invalid trigger %q (use always, on_failure, or never)", wh.Trigger))
			}
		}

		// An unset variable leaves the reference in place
		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		if len(issues) > 0 {
			result.Status = "error"
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		} else if len(warnings) > 0 {
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}

			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
