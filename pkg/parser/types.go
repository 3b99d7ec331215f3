// Package parser reads trace files, plain or compressed, and extracts
// trace timestamps.
package parser

// LogLine is one raw line of a trace file.
type LogLine struct {
	// Content is the raw line text, without the trailing newline.
	Content string

	// Source is the file path this line came from.
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int
}
