// Package output formats run results and run history for the terminal.
package output

import (
	"time"

	"github.com/ccollicutt/wiretrace/pkg/pipeline"
)

// Report is the complete output of one analyze invocation.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Run is the pipeline result, stages included.
	Run *pipeline.RunResult `json:"run"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	Success            bool    `json:"success"`
	FilesRead          int     `json:"files_read"`
	Entries            int     `json:"entries"`
	Units              int     `json:"units"`
	Groups             int     `json:"groups"`
	Retries            int     `json:"retries"`
	Unanswered         int     `json:"unanswered"`
	Orphans            int     `json:"orphans"`
	DuplicateResponses int     `json:"duplicate_responses"`
	EscapeMisses       int     `json:"escape_misses"`
	DurationMs         float64 `json:"duration_ms"`
}

// Metadata provides context about the run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the trace files that were requested.
	Sources []string `json:"sources"`

	// AnalyzedAt is when the run finished.
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// NewReport creates a Report from a run result.
func NewReport(res *pipeline.RunResult, sources []string, configFile string, at time.Time) *Report {
	return &Report{
		Run: res,
		Summary: Summary{
			Success:            res.Success,
			FilesRead:          res.FilesRead,
			Entries:            res.EntryCount,
			Units:              res.UnitCount,
			Groups:             res.MatchStats.Groups,
			Retries:            res.MatchStats.Retries,
			Unanswered:         res.MatchStats.Unanswered,
			Orphans:            res.MatchStats.Orphans,
			DuplicateResponses: res.MatchStats.DuplicateResponses,
			EscapeMisses:       res.DecodeStats.EscapeMisses,
			DurationMs:         res.TotalDurationMs(),
		},
		Metadata: Metadata{
			ConfigFile: configFile,
			Sources:    sources,
			AnalyzedAt: at,
		},
	}
}

// Failed returns true if the run did not complete.
func (r *Report) Failed() bool {
	return !r.Summary.Success
}
