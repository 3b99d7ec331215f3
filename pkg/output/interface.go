package output

import (
	"context"
	"io"

	"github.com/ccollicutt/wiretrace/pkg/history"
)

// Formatter renders run results in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// FormatHistory renders stored run records, oldest first.
	FormatHistory(ctx context.Context, records []history.Record, w io.Writer) error

	// Name returns the format name (text, json).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds decode and match counters to text output.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool
}

// NewFormatter returns the formatter for name, or nil if unknown.
func NewFormatter(name string, opts FormatOptions) Formatter {
	switch name {
	case "text":
		return NewTextFormatter(opts)
	case "json":
		return NewJSONFormatter(opts)
	default:
		return nil
	}
}
