package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
	"github.com/ccollicutt/wiretrace/pkg/history"
	"github.com/ccollicutt/wiretrace/pkg/matcher"
	"github.com/ccollicutt/wiretrace/pkg/parser"
	"github.com/ccollicutt/wiretrace/pkg/report"
	"github.com/ccollicutt/wiretrace/pkg/schema"
)

// Orchestrator sequences the stages of a run. It keeps no state between
// runs apart from the history store it appends to.
type Orchestrator struct {
	schemas   schema.Store
	outputDir string

	reader   FileReader
	renderer Renderer
	plain    Exporter
	sorted   Exporter
	history  history.Store
	metrics  *Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFileReader replaces the trace file reader.
func WithFileReader(r FileReader) Option {
	return func(o *Orchestrator) {
		o.reader = r
	}
}

// WithRenderer replaces the report renderer.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) {
		o.renderer = r
	}
}

// WithPlainExporter replaces the decode-order text exporter.
func WithPlainExporter(x Exporter) Option {
	return func(o *Orchestrator) {
		o.plain = x
	}
}

// WithSortedExporter replaces the time-ordered text exporter.
func WithSortedExporter(x Exporter) Option {
	return func(o *Orchestrator) {
		o.sorted = x
	}
}

// WithHistory appends a record to store after every completed run.
func WithHistory(store history.Store) Option {
	return func(o *Orchestrator) {
		o.history = store
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger passed down to every stage.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock replaces time.Now for stage timing and artifact stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator that resolves schemas from store and writes
// artifacts under outputDir.
func New(store schema.Store, outputDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		schemas:   store,
		outputDir: outputDir,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.reader == nil {
		o.reader = parser.NewFileReader(parser.WithLogger(o.logger))
	}
	if o.renderer == nil {
		o.renderer = report.NewHTMLRenderer(report.WithLogger(o.logger))
	}
	if o.plain == nil {
		o.plain = report.NewTextExporter()
	}
	if o.sorted == nil {
		o.sorted = report.NewSortedExporter()
	}
	return o
}

// run carries the per-run working state.
type run struct {
	req    Request
	result *RunResult
	logger zerolog.Logger
	stamp  string
}

// Run executes one analysis. It never returns nil; failures are reported
// through the result's Success, Error and Err fields.
func (o *Orchestrator) Run(ctx context.Context, req Request) *RunResult {
	r := &run{
		req: req,
		result: &RunResult{
			RunID:      uuid.NewString(),
			NamespaceA: req.NamespaceA,
			NamespaceB: req.NamespaceB,
			Stages:     []StageRecord{},
		},
		stamp: o.now().Format(report.StampLayout),
	}
	r.logger = o.logger.With().
		Str("run_id", r.result.RunID).
		Str("namespace_a", req.NamespaceA).
		Str("namespace_b", req.NamespaceB).
		Logger()

	if len(req.Paths) == 0 {
		return o.fail(r, ErrNoFiles)
	}

	if err := checkCancelled(ctx); err != nil {
		return o.fail(r, err)
	}

	sch, err := o.schemas.Resolve(ctx, req.NamespaceA, req.NamespaceB)
	if err != nil {
		return o.fail(r, fmt.Errorf("%w: %s_%s: %v", ErrSchemaNotFound, req.NamespaceA, req.NamespaceB, err))
	}

	var lines []string
	o.stage(r, StageReadFiles, len(req.Paths), func() int {
		lines, r.result.FilesRead = o.reader.ReadLines(ctx, req.Paths)
		return len(lines)
	})
	if err := checkCancelled(ctx); err != nil {
		return o.fail(r, err)
	}
	if len(lines) == 0 {
		return o.fail(r, ErrNoLines)
	}

	var entries []*decoder.Entry
	o.stage(r, StageDecode, len(lines), func() int {
		entries, r.result.DecodeStats = decoder.New(sch, decoder.WithLogger(r.logger)).DecodeWithStats(lines)
		return len(entries)
	})
	r.result.EntryCount = len(entries)
	o.metrics.recordEntries(len(entries))
	if err := checkCancelled(ctx); err != nil {
		return o.fail(r, err)
	}
	if len(entries) == 0 {
		return o.fail(r, ErrNoEntries)
	}

	var units []matcher.Unit
	o.stage(r, StageMatch, len(entries), func() int {
		units, r.result.MatchStats = matcher.New(sch, matcher.WithLogger(r.logger)).MatchWithStats(entries)
		return len(units)
	})
	r.result.UnitCount = len(units)
	o.metrics.recordUnits(r.result.MatchStats)
	if err := checkCancelled(ctx); err != nil {
		return o.fail(r, err)
	}

	if req.Options.GenerateHTML {
		if err := o.render(ctx, r, units, entries); err != nil {
			return o.fail(r, err)
		}
		if err := checkCancelled(ctx); err != nil {
			return o.fail(r, err)
		}
	}

	if req.Options.GeneratePlain {
		r.result.PlainLog = o.export(ctx, r, StageExportPlain, o.plain, entries, report.PlainLogName(r.stamp))
		if err := checkCancelled(ctx); err != nil {
			return o.fail(r, err)
		}
	}

	if req.Options.GenerateSorted {
		r.result.SortedLog = o.export(ctx, r, StageExportSorted, o.sorted, entries, report.SortedLogName(r.stamp))
	}

	r.result.Success = true
	o.appendHistory(ctx, r)
	o.metrics.recordRun(true)

	r.logger.Info().
		Int("files", r.result.FilesRead).
		Int("entries", r.result.EntryCount).
		Int("units", r.result.UnitCount).
		Int("groups", r.result.MatchStats.Groups).
		Float64("duration_ms", r.result.TotalDurationMs()).
		Msg("run completed")
	return r.result
}

func (o *Orchestrator) render(ctx context.Context, r *run, units []matcher.Unit, entries []*decoder.Entry) error {
	path := filepath.Join(o.outputDir, report.FileName(r.req.NamespaceA, r.req.NamespaceB, r.req.Paths, r.stamp))

	var out string
	var err error
	o.stage(r, StageRender, len(units), func() int {
		out, err = o.renderer.Render(ctx, units, entries, path)
		if err != nil || out == "" {
			return 0
		}
		return 1
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	if out == "" {
		return fmt.Errorf("%w: no report produced", ErrRenderFailed)
	}
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	r.result.HTMLReport = out
	r.result.RawReport = filepath.Join(filepath.Dir(out), report.RawName(out))
	return nil
}

// export runs one text export. Failures are logged and leave the artifact
// path empty.
func (o *Orchestrator) export(ctx context.Context, r *run, name string, x Exporter, entries []*decoder.Entry, fileName string) string {
	path := filepath.Join(o.outputDir, fileName)
	var err error
	o.stage(r, name, len(entries), func() int {
		if err = x.Export(ctx, entries, path); err != nil {
			return 0
		}
		return 1
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("stage", name).Str("path", path).Msg("export failed")
		return ""
	}
	return path
}

func (o *Orchestrator) appendHistory(ctx context.Context, r *run) {
	if o.history == nil {
		return
	}

	files := make([]string, len(r.req.Paths))
	for i, p := range r.req.Paths {
		files[i] = filepath.Base(p)
	}
	rec := history.Record{
		Timestamp:     r.stamp,
		RunID:         r.result.RunID,
		NamespaceA:    r.req.NamespaceA,
		NamespaceB:    r.req.NamespaceB,
		LogFiles:      files,
		LogFileCount:  len(r.req.Paths),
		LogEntryCount: r.result.EntryCount,
		Options:       r.req.Options,
		Stages:        append([]StageRecord(nil), r.result.Stages...),
	}
	if err := o.history.Append(ctx, rec); err != nil {
		r.logger.Warn().Err(err).Msg("failed to record run history")
	}
}

// stage times fn and appends its record. fn returns the output count.
func (o *Orchestrator) stage(r *run, name string, input int, fn func() int) {
	start := o.now()
	output := fn()
	elapsed := o.now().Sub(start)

	r.result.Stages = append(r.result.Stages, StageRecord{
		Name:        name,
		DurationMs:  roundMs(elapsed),
		InputCount:  input,
		OutputCount: output,
	})
	o.metrics.observeStage(name, elapsed)

	r.logger.Debug().
		Str("stage", name).
		Int("input", input).
		Int("output", output).
		Dur("elapsed", elapsed).
		Msg("stage finished")
}

func (o *Orchestrator) fail(r *run, err error) *RunResult {
	r.result.Success = false
	r.result.Err = err
	r.result.Error = err.Error()
	o.metrics.recordRun(false)

	r.logger.Error().Err(err).Int("stages", len(r.result.Stages)).Msg("run failed")
	return r.result
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

func roundMs(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
