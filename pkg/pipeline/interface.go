package pipeline

import (
	"context"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
	"github.com/ccollicutt/wiretrace/pkg/matcher"
)

// FileReader reads trace files into lines.
type FileReader interface {
	// ReadLines returns the lines of every readable file, in path order,
	// and the number of files that contributed. Unreadable files are
	// skipped, never fatal.
	ReadLines(ctx context.Context, paths []string) ([]string, int)
}

// Renderer writes the analysis report for a matched run.
type Renderer interface {
	// Render writes the report to path and returns the written path.
	Render(ctx context.Context, units []matcher.Unit, entries []*decoder.Entry, path string) (string, error)
}

// Exporter writes decoded entries to a text artifact.
type Exporter interface {
	Export(ctx context.Context, entries []*decoder.Entry, path string) error
}
