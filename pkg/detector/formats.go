package detector

import (
	"regexp"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
	"github.com/ccollicutt/wiretrace/pkg/parser"
)

// ShapeKind classifies a trace line shape.
type ShapeKind string

const (
	KindDirection ShapeKind = "direction"
	KindProcess   ShapeKind = "process"
	KindOther     ShapeKind = "timestamped"
)

// LineShape is a known trace header shape. The first capture group of
// Pattern is the timestamp.
type LineShape struct {
	Name       string
	Kind       ShapeKind
	Pattern    *regexp.Regexp
	PatternStr string
	Layout     string
	Examples   []string
}

// HeaderShape reports whether the shape starts a decodable record.
func (s *LineShape) HeaderShape() bool {
	return s.Kind == KindDirection || s.Kind == KindProcess
}

// DefaultShapes returns the built-in trace line shapes, most specific first.
func DefaultShapes() []*LineShape {
	shapes := []*LineShape{
		{
			Name:       "Direction record header",
			Kind:       KindDirection,
			PatternStr: decoder.DirectionHeaderPattern,
			Layout:     parser.TraceTimestampLayout,
			Examples:   []string{"23.10.24 08:15:02.120 Input: Node 7, 44 bytes <== 44"},
		},
		{
			Name:       "Process event header",
			Kind:       KindProcess,
			PatternStr: decoder.ProcessHeaderPattern,
			Layout:     parser.TraceTimestampLayout,
			Examples:   []string{"23.10.24 08:15:02.120 PID=12345 D Node 7, *** REQ00001 0001 *** (start)"},
		},
		{
			Name:       "Timestamped trace line",
			Kind:       KindOther,
			PatternStr: `^(\d{2}\.\d{2}\.\d{2} \d{2}:\d{2}:\d{2}\.\d{3})\s`,
			Layout:     parser.TraceTimestampLayout,
			Examples:   []string{"23.10.24 08:15:02.120 link up"},
		},
	}

	for _, s := range shapes {
		s.Pattern = regexp.MustCompile(s.PatternStr)
	}

	return shapes
}
