package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ccollicutt/wiretrace/pkg/history"
	"github.com/ccollicutt/wiretrace/pkg/pipeline"
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true)
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)  // green
	styleFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))            // gray
	stylePath   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))             // cyan
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func status(ok bool) string {
	if ok {
		return styleOK.Render("OK")
	}
	return styleFailed.Render("FAILED")
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	s := report.Summary
	_, err := fmt.Fprintf(w, "wiretrace: %s, %d entries, %d groups, %d unanswered\n",
		status(s.Success), s.Entries, s.Groups, s.Unanswered)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	run := report.Run
	s := report.Summary

	fmt.Fprintln(w, styleTitle.Render("=== wiretrace run "+run.RunID+" ==="))
	fmt.Fprintf(w, "Namespaces: %s / %s\n", run.NamespaceA, run.NamespaceB)
	fmt.Fprintf(w, "Status: %s\n", status(s.Success))
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", styleFailed.Render(run.Error))
	}
	fmt.Fprintln(w)

	f.formatStages(run.Stages, w)
	fmt.Fprintln(w)

	if s.Success {
		fmt.Fprintf(w, "Summary: %d files, %d entries, %d units, %d groups (%d retries, %d unanswered)\n",
			s.FilesRead, s.Entries, s.Units, s.Groups, s.Retries, s.Unanswered)
	}

	if f.opts.Verbose {
		d := run.DecodeStats
		fmt.Fprintf(w, "Decode: %d lines, %d blank, %d markers, %d unrecognized, %d escape misses\n",
			d.Lines, d.Blank, d.Markers, d.Unrecognized, d.EscapeMisses)
		fmt.Fprintf(w, "Match: %d orphan responses, %d duplicate responses\n",
			s.Orphans, s.DuplicateResponses)
		fmt.Fprintf(w, "Duration: %.2f ms\n", s.DurationMs)
	}

	if artifacts := run.Artifacts(); len(artifacts) > 0 {
		fmt.Fprintln(w, "Artifacts:")
		for _, a := range artifacts {
			fmt.Fprintf(w, "  %s\n", stylePath.Render(a))
		}
	}

	return nil
}

func (f *TextFormatter) formatStages(stages []pipeline.StageRecord, w io.Writer) {
	if len(stages) == 0 {
		fmt.Fprintln(w, styleMuted.Render("No stages ran"))
		return
	}
	fmt.Fprintf(w, "%-14s %12s %10s %10s\n", "STAGE", "DURATION_MS", "INPUT", "OUTPUT")
	for _, st := range stages {
		fmt.Fprintf(w, "%-14s %12.2f %10d %10d\n", st.Name, st.DurationMs, st.InputCount, st.OutputCount)
	}
}

// FormatHistory renders one line per stored run, oldest first.
func (f *TextFormatter) FormatHistory(_ context.Context, records []history.Record, w io.Writer) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}

	for _, rec := range records {
		var total float64
		for _, st := range rec.Stages {
			total += st.DurationMs
		}
		fmt.Fprintf(w, "%s  %s  %s_%s  %d files  %d entries  %.2f ms\n",
			rec.Timestamp, rec.RunID, rec.NamespaceA, rec.NamespaceB,
			rec.LogFileCount, rec.LogEntryCount, total)
		if f.opts.Verbose && len(rec.LogFiles) > 0 {
			fmt.Fprintf(w, "    %s\n", styleMuted.Render(strings.Join(rec.LogFiles, ", ")))
		}
	}
	return nil
}
