package parser

import (
	"fmt"
	"regexp"
	"time"
)

// TraceTimestampLayout is the layout of trace header timestamps
// (DD.MM.YY hh:mm:ss.mmm).
const TraceTimestampLayout = "02.01.06 15:04:05.000"

// TraceTimestampPattern captures the timestamp at the start of a trace header.
var TraceTimestampPattern = regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`)

// TimestampExtractor extracts and parses timestamps from log lines.
type TimestampExtractor struct {
	pattern *regexp.Regexp
	layout  string
}

// NewTimestampExtractor creates a new timestamp extractor.
func NewTimestampExtractor(pattern *regexp.Regexp, layout string) *TimestampExtractor {
	return &TimestampExtractor{
		pattern: pattern,
		layout:  layout,
	}
}

// NewTraceTimestampExtractor returns an extractor for trace headers.
func NewTraceTimestampExtractor() *TimestampExtractor {
	return NewTimestampExtractor(TraceTimestampPattern, TraceTimestampLayout)
}

// Extract attempts to extract and parse a timestamp from a log line.
// Returns zero time and error if the pattern doesn't match or parsing fails.
func (e *TimestampExtractor) Extract(line string) (time.Time, error) {
	matches := e.pattern.FindStringSubmatch(line)
	if len(matches) < 2 {
		return time.Time{}, fmt.Errorf("timestamp pattern did not match")
	}

	tsStr := matches[1]
	ts, err := e.Parse(tsStr)
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// Parse parses an already isolated timestamp string.
func (e *TimestampExtractor) Parse(tsStr string) (time.Time, error) {
	ts, err := time.Parse(e.layout, tsStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", tsStr, err)
	}
	return ts, nil
}
