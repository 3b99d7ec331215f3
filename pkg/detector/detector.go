// Package detector samples trace files and reports whether they have the
// shape the decoder expects.
package detector

import (
	"bufio"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
	"github.com/ccollicutt/wiretrace/pkg/parser"
	"github.com/ccollicutt/wiretrace/pkg/schema"
)

// DetectionResult holds the result of sampling a trace file.
type DetectionResult struct {
	Matches      []ShapeMatch // Shapes that matched, most frequent first
	SampledLines int          // Number of non-blank lines sampled
	HeaderLines  int          // Lines that start a decodable record
	Heartbeats   int          // Heartbeat content lines

	// Coverage is the share of sampled lines accounted for by records
	// (header plus content), capped at 1.
	Coverage float64

	// FirstTimestamp and LastTimestamp bound the sampled headers.
	FirstTimestamp time.Time
	LastTimestamp  time.Time

	// Schema results, set only when the detector has a schema.
	Schema *SchemaCoverage
}

// SchemaCoverage reports how much of the sample a schema can decode.
type SchemaCoverage struct {
	Entries      int
	KnownTypes   map[string]int
	UnknownTypes map[string]int
	EscapeMisses int
}

// KnownShare is the share of typed entries whose type is in the schema.
func (c *SchemaCoverage) KnownShare() float64 {
	known, total := 0, 0
	for _, n := range c.KnownTypes {
		known += n
		total += n
	}
	for _, n := range c.UnknownTypes {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(known) / float64(total)
}

// ShapeMatch is a line shape with its match statistics.
type ShapeMatch struct {
	Shape      *LineShape
	MatchCount int
	SampleLine string
	ParsedTime time.Time
}

// Detector samples trace files.
type Detector struct {
	shapes     []*LineShape
	sampleSize int
	schema     *schema.Schema
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 200).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithSchema decodes the sample and reports message-type coverage.
func WithSchema(s *schema.Schema) Option {
	return func(d *Detector) {
		d.schema = s
	}
}

// New creates a new Detector with the default shapes.
func New(opts ...Option) *Detector {
	d := &Detector{
		shapes:     DefaultShapes(),
		sampleSize: 200,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples a trace file, compressed or not.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines classifies a slice of trace lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{}

	stats := make(map[string]*ShapeMatch)
	var sampled []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sampled = append(sampled, line)

		if decoder.IsHeartbeat(line) {
			result.Heartbeats++
		}

		shape, ts, ok := d.classify(line)
		if !ok {
			continue
		}
		m := stats[shape.Name]
		if m == nil {
			m = &ShapeMatch{Shape: shape, SampleLine: line, ParsedTime: ts}
			stats[shape.Name] = m
		}
		m.MatchCount++

		if shape.HeaderShape() {
			result.HeaderLines++
			if result.FirstTimestamp.IsZero() || ts.Before(result.FirstTimestamp) {
				result.FirstTimestamp = ts
			}
			if ts.After(result.LastTimestamp) {
				result.LastTimestamp = ts
			}
		}
	}

	result.SampledLines = len(sampled)
	if result.SampledLines == 0 {
		return result
	}

	for _, m := range stats {
		result.Matches = append(result.Matches, *m)
	}
	sort.Slice(result.Matches, func(i, j int) bool {
		if result.Matches[i].MatchCount != result.Matches[j].MatchCount {
			return result.Matches[i].MatchCount > result.Matches[j].MatchCount
		}
		return len(result.Matches[i].Shape.PatternStr) > len(result.Matches[j].Shape.PatternStr)
	})

	result.Coverage = float64(2*result.HeaderLines) / float64(result.SampledLines)
	if result.Coverage > 1 {
		result.Coverage = 1
	}

	if d.schema != nil {
		result.Schema = d.schemaCoverage(sampled)
	}

	return result
}

// classify returns the first shape matching line and its parsed timestamp.
func (d *Detector) classify(line string) (*LineShape, time.Time, bool) {
	for _, shape := range d.shapes {
		m := shape.Pattern.FindStringSubmatch(line)
		if len(m) < 2 {
			continue
		}
		ts, err := time.Parse(shape.Layout, m[1])
		if err != nil {
			continue
		}
		return shape, ts, true
	}
	return nil, time.Time{}, false
}

func (d *Detector) schemaCoverage(lines []string) *SchemaCoverage {
	entries, stats := decoder.New(d.schema).DecodeWithStats(lines)
	cov := &SchemaCoverage{
		Entries:      len(entries),
		KnownTypes:   make(map[string]int),
		UnknownTypes: make(map[string]int),
		EscapeMisses: stats.EscapeMisses,
	}
	for _, e := range entries {
		mt := e.MessageType()
		if mt == "" {
			continue
		}
		if _, ok := d.schema.Lookup(mt); ok {
			cov.KnownTypes[mt]++
		} else {
			cov.UnknownTypes[mt]++
		}
	}
	return cov
}

// sampleFile reads up to sampleSize non-blank lines from a file.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]string, error) {
	rc, err := parser.OpenTrace(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var lines []string
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() && len(lines) < d.sampleSize {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if strings.TrimSpace(scanner.Text()) != "" {
			lines = append(lines, scanner.Text())
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// BestMatch returns the most frequent shape, or nil if none matched.
func (r *DetectionResult) BestMatch() *ShapeMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one shape matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// LooksLikeTrace reports whether at least half of the sample is made of
// decodable records.
func (r *DetectionResult) LooksLikeTrace() bool {
	return r.HeaderLines > 0 && r.Coverage >= 0.5
}
