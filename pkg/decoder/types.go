// Package decoder turns raw two-line trace records into structured entries
// using a message schema.
package decoder

import "time"

const (
	// InsufficientContent is the value of a field whose offset range lies
	// beyond the message content.
	InsufficientContent = "内容不足，未能提取"

	// UndefinedEscape labels a field value missing from its escape table.
	UndefinedEscape = "未定义的转义值"

	// MissingBody stands in for the second line of a record at end of input.
	MissingBody = "无内容"
)

// SegmentKind names the piece of an entry a segment covers.
type SegmentKind string

const (
	KindTimestamp   SegmentKind = "ts"
	KindDirection   SegmentKind = "dir"
	KindNode        SegmentKind = "node"
	KindMessageType SegmentKind = "msg_type"
	KindVersion     SegmentKind = "ver"
	KindPID         SegmentKind = "pid"
	KindPIDMessage1 SegmentKind = "pid_msg1"
	KindPIDMessage2 SegmentKind = "pid_msg2"
	KindField       SegmentKind = "field"
)

// Direction values as written in trace headers.
const (
	DirectionInput  = "Input"
	DirectionOutput = "Output"
)

// Segment is one labeled, positioned piece of a decoded entry.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`

	// Index orders segments for display. Field segments start at 5.
	Index int `json:"idx"`

	// Description is set on message-type segments.
	Description string `json:"description,omitempty"`
}

// EscapeHit records a field value that was not found in its escape table.
type EscapeHit struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Display string `json:"display"`
}

// Entry is one decoded trace record. Entries are not modified after
// decoding.
type Entry struct {
	// Seq is the position of the entry in the full decoded sequence.
	Seq int `json:"seq"`

	// Timestamp is parsed from the first line; nil when it does not parse.
	Timestamp *time.Time `json:"timestamp,omitempty"`

	RawLine1 string `json:"raw_line1"`
	RawLine2 string `json:"raw_line2"`

	// Rendered is the human-readable one-line summary.
	Rendered string `json:"rendered"`

	Segments []Segment `json:"segments"`

	// EscapeHits lists escape-table misses found while decoding fields.
	EscapeHits []EscapeHit `json:"escape_hits,omitempty"`
}

// Segment returns the first segment of the given kind.
func (e *Entry) Segment(kind SegmentKind) (Segment, bool) {
	for _, s := range e.Segments {
		if s.Kind == kind {
			return s, true
		}
	}
	return Segment{}, false
}

// Text returns the text of the first segment of the given kind, or "".
func (e *Entry) Text(kind SegmentKind) string {
	s, _ := e.Segment(kind)
	return s.Text
}

// IsProcessEvent reports whether the entry is a process-event record.
func (e *Entry) IsProcessEvent() bool {
	_, ok := e.Segment(KindPID)
	return ok
}

// Direction returns Input, Output or "" for process events.
func (e *Entry) Direction() string {
	return e.Text(KindDirection)
}

// Node returns the node number text, or "".
func (e *Entry) Node() string {
	return e.Text(KindNode)
}

// MessageType returns the decoded message type, or "".
func (e *Entry) MessageType() string {
	return e.Text(KindMessageType)
}

// Fields returns the field segments in order.
func (e *Entry) Fields() []Segment {
	var fields []Segment
	for _, s := range e.Segments {
		if s.Kind == KindField {
			fields = append(fields, s)
		}
	}
	return fields
}

// HasAnomaly reports whether any field value missed its escape table.
func (e *Entry) HasAnomaly() bool {
	return len(e.EscapeHits) > 0
}

// Stats counts what the decoder saw in one pass.
type Stats struct {
	// Lines is the number of input lines.
	Lines int `json:"lines"`

	// Blank lines skipped.
	Blank int `json:"blank"`

	// Markers counts heartbeat and short "???" records skipped.
	Markers int `json:"markers"`

	// Unrecognized lines matched neither header shape.
	Unrecognized int `json:"unrecognized"`

	// Direction and Process count emitted entries by record shape.
	Direction int `json:"direction"`
	Process   int `json:"process"`

	// EscapeMisses counts field values missing from their escape tables.
	EscapeMisses int `json:"escape_misses"`
}

// Entries returns the number of entries produced.
func (s Stats) Entries() int {
	return s.Direction + s.Process
}
