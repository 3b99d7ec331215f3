// Package pipeline runs an analysis: read trace files, decode, match
// transactions, then render and export the requested artifacts.
package pipeline

import (
	"errors"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
	"github.com/ccollicutt/wiretrace/pkg/history"
	"github.com/ccollicutt/wiretrace/pkg/matcher"
)

// Fatal run conditions. A failed RunResult carries one of these in Err.
var (
	ErrNoFiles        = errors.New("no log files given")
	ErrSchemaNotFound = errors.New("schema not found")
	ErrNoLines        = errors.New("no log lines read")
	ErrNoEntries      = errors.New("no entries decoded")
	ErrRenderFailed   = errors.New("report rendering failed")
	ErrCancelled      = errors.New("run cancelled")
)

// Stage names, in execution order.
const (
	StageReadFiles    = "read_files"
	StageDecode       = "decode"
	StageMatch        = "match"
	StageRender       = "render"
	StageExportPlain  = "export_plain"
	StageExportSorted = "export_sorted"
)

// Options selects the artifacts a run produces.
type Options = history.Options

// DefaultOptions enables every artifact.
func DefaultOptions() Options {
	return Options{GenerateHTML: true, GeneratePlain: true, GenerateSorted: true}
}

// StageRecord is the timing and item counts of one stage.
type StageRecord = history.StageRecord

// Request describes one run.
type Request struct {
	NamespaceA string
	NamespaceB string

	// Paths are the trace files to read, in order.
	Paths []string

	Options Options
}

// RunResult is the outcome of one run. It is created fresh for every run
// and is well-formed on failure too.
type RunResult struct {
	RunID      string `json:"run_id"`
	NamespaceA string `json:"namespace_a"`
	NamespaceB string `json:"namespace_b"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Err wraps one of the package sentinels when the run failed.
	Err error `json:"-"`

	// Stages lists every stage that ran, including the one that failed.
	Stages []StageRecord `json:"stages"`

	FilesRead  int `json:"files_read"`
	EntryCount int `json:"entry_count"`
	UnitCount  int `json:"unit_count"`

	DecodeStats decoder.Stats `json:"decode_stats"`
	MatchStats  matcher.Stats `json:"match_stats"`

	// Artifact paths; empty when not requested or not produced.
	HTMLReport string `json:"html_report,omitempty"`
	RawReport  string `json:"raw_report,omitempty"`
	PlainLog   string `json:"plain_log,omitempty"`
	SortedLog  string `json:"sorted_log,omitempty"`
}

// Stage returns the record for the named stage.
func (r *RunResult) Stage(name string) (StageRecord, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageRecord{}, false
}

// TotalDurationMs sums the recorded stage durations.
func (r *RunResult) TotalDurationMs() float64 {
	var total float64
	for _, s := range r.Stages {
		total += s.DurationMs
	}
	return total
}

// Artifacts returns the non-empty artifact paths.
func (r *RunResult) Artifacts() []string {
	var out []string
	for _, p := range []string{r.HTMLReport, r.RawReport, r.PlainLog, r.SortedLog} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
