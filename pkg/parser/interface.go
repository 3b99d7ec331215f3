package parser

import (
	"context"
	"io"
)

// LineSource provides an iterator over raw trace lines.
// Implementations must be safe for sequential access (not concurrent).
type LineSource interface {
	// Next returns the next line.
	// Returns io.EOF when no more lines are available.
	Next(ctx context.Context) (*LogLine, error)

	// Close releases any resources held by the source.
	Close() error
}

// Ensure io.EOF is available for callers
var _ = io.EOF
