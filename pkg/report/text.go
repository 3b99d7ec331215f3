package report

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
)

// TextExporter writes one rendered line per entry.
type TextExporter struct {
	sorted bool
}

// NewTextExporter writes entries in decode order.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// NewSortedExporter writes timestamped entries in ascending time order,
// ties kept in decode order. Entries without a timestamp are left out.
func NewSortedExporter() *TextExporter {
	return &TextExporter{sorted: true}
}

// Export writes the entries to path.
func (x *TextExporter) Export(ctx context.Context, entries []*decoder.Entry, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if x.sorted {
		entries = SortByTimestamp(entries)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path) // #nosec G304 -- path is built from the configured output directory
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := w.WriteString(e.Rendered + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// SortByTimestamp returns the timestamped entries ordered by time. The
// input slice is not modified.
func SortByTimestamp(entries []*decoder.Entry) []*decoder.Entry {
	out := make([]*decoder.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp != nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(*out[j].Timestamp)
	})
	return out
}
