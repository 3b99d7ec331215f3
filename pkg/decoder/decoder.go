package decoder

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ccollicutt/wiretrace/pkg/parser"
	"github.com/ccollicutt/wiretrace/pkg/schema"
)

// Header line patterns. The first capture group of each is the timestamp.
const (
	ProcessHeaderPattern = `^(\d{2}\.\d{2}\.\d{2} \d{2}:\d{2}:\d{2}\.\d{3}) PID=\d+ D Node \d+, \*\*\* (.*) \*\*\* \((.*)\)$`

	DirectionHeaderPattern = `^(\d{2}\.\d{2}\.\d{2} \d{2}:\d{2}:\d{2}\.\d{3})\s+(Input|Output):\s+Node\s+(\d+),\s+(\d+)\s+bytes\s+(<==|==>)\s+(\d+)$`
)

var (
	processHeader   = regexp.MustCompile(ProcessHeaderPattern)
	directionHeader = regexp.MustCompile(DirectionHeaderPattern)

	pidToken    = regexp.MustCompile(`PID=\d+`)
	wellFormPID = regexp.MustCompile(`^PID=\d+$`)
	nodeToken   = regexp.MustCompile(`Node\s+(\d+)`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	fourDigits  = regexp.MustCompile(`^\d{4}$`)
)

// Fixed windows into a process-event header line.
const (
	pidWindowStart  = 22
	pidWindowEnd    = 31
	nodeWindowStart = 39
	pidTextStart    = 45
)

// heartbeatMarkers identify keep-alive traffic that is never decoded.
var heartbeatMarkers = []string{"PING_IPS", "PING_I_R"}

// Decoder turns raw trace lines into entries. It holds no state between
// calls other than the schema.
type Decoder struct {
	schema    *schema.Schema
	timestamp *parser.TimestampExtractor
	logger    zerolog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the decoder's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// New creates a Decoder for the given schema.
func New(sch *schema.Schema, opts ...Option) *Decoder {
	d := &Decoder{
		schema:    sch,
		timestamp: parser.NewTraceTimestampExtractor(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode converts the ordered lines into entries.
func (d *Decoder) Decode(lines []string) []*Entry {
	entries, _ := d.DecodeWithStats(lines)
	return entries
}

// DecodeWithStats converts the ordered lines into entries and reports what
// was skipped. Each step consumes one or two lines and never looks back.
func (d *Decoder) DecodeWithStats(lines []string) ([]*Entry, Stats) {
	stats := Stats{Lines: len(lines)}
	var entries []*Entry

	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			stats.Blank++
			i++
			continue
		}

		next := MissingBody
		if i+1 < len(lines) {
			next = strings.TrimSpace(lines[i+1])
		}

		if processHeader.MatchString(line) {
			entry := d.decodeProcess(line, next)
			entry.Seq = len(entries)
			entries = append(entries, entry)
			stats.Process++
			stats.EscapeMisses += len(entry.EscapeHits)
			i += 2
			continue
		}

		if m := directionHeader.FindStringSubmatch(line); m != nil {
			if isMarker(next) {
				stats.Markers++
				i++
				continue
			}
			entry := d.decodeDirection(line, next, m[1], m[2], m[3])
			entry.Seq = len(entries)
			entries = append(entries, entry)
			stats.Direction++
			stats.EscapeMisses += len(entry.EscapeHits)
			i += 2
			continue
		}

		stats.Unrecognized++
		i++
	}

	d.logger.Debug().
		Int("lines", stats.Lines).
		Int("entries", len(entries)).
		Int("markers", stats.Markers).
		Int("unrecognized", stats.Unrecognized).
		Msg("decoded trace lines")

	return entries, stats
}

// isMarker reports whether the content line is a short unrecognized marker
// or a heartbeat.
func isMarker(content string) bool {
	if strings.HasPrefix(content, "???") && utf8.RuneCountInString(content) < 10 {
		return true
	}
	return IsHeartbeat(content)
}

// IsHeartbeat reports whether a content line carries keep-alive traffic.
func IsHeartbeat(content string) bool {
	for _, hb := range heartbeatMarkers {
		if strings.Contains(content, hb) {
			return true
		}
	}
	return false
}

func (d *Decoder) decodeDirection(line, raw, tsText, direction, node string) *Entry {
	content := MessageContent(direction, raw)
	dm := decodeContent(d.schema, content)

	entry := &Entry{
		Timestamp:  d.parseTimestamp(line),
		RawLine1:   line,
		RawLine2:   raw,
		Rendered:   fmt.Sprintf("%-16s %-6s %3s：%s", tsText, direction, node, dm.summary),
		EscapeHits: dm.hits,
	}

	entry.Segments = append(entry.Segments,
		Segment{Kind: KindTimestamp, Text: tsText, Index: 0},
		Segment{Kind: KindDirection, Text: direction, Index: 1},
		Segment{Kind: KindNode, Text: node, Index: 2},
	)
	if dm.msgType != "" {
		entry.Segments = append(entry.Segments,
			Segment{Kind: KindMessageType, Text: dm.msgType, Index: 3, Description: dm.description})
	}
	if dm.version != "" {
		entry.Segments = append(entry.Segments, Segment{Kind: KindVersion, Text: dm.version, Index: 4})
	}
	entry.Segments = append(entry.Segments, dm.fields...)

	return entry
}

func (d *Decoder) decodeProcess(header, body string) *Entry {
	entry := &Entry{
		Timestamp: d.parseTimestamp(header),
		RawLine1:  header,
		RawLine2:  body,
		Rendered:  d.processSummary(header, body),
	}

	if entry.Timestamp != nil {
		entry.Segments = append(entry.Segments,
			Segment{Kind: KindTimestamp, Text: entry.Timestamp.Format(parser.TraceTimestampLayout), Index: 0})
	}
	if pid := processPID(header); pid != "" {
		entry.Segments = append(entry.Segments, Segment{Kind: KindPID, Text: pid, Index: 1})
	}
	if node := processNode(header); node != "" {
		entry.Segments = append(entry.Segments, Segment{Kind: KindNode, Text: node, Index: 2})
	}
	if msg := freeText(header); msg != "" {
		entry.Segments = append(entry.Segments, Segment{Kind: KindPIDMessage1, Text: msg, Index: 3})
	}
	if msg := freeText(body); msg != "" {
		entry.Segments = append(entry.Segments, Segment{Kind: KindPIDMessage2, Text: msg, Index: 4})
	}

	return entry
}

// processSummary decodes the body as message content. When the body's type
// is unknown it falls back to the header's *** ... *** text.
func (d *Decoder) processSummary(header, body string) string {
	dm := decodeContent(d.schema, body)
	if dm.known {
		return dm.summary
	}

	m := processHeader.FindStringSubmatch(header)
	if m == nil {
		return body
	}
	headerText := strings.TrimSpace(m[2])
	tokens := strings.Fields(headerText)
	if len(tokens) < 2 {
		return body
	}

	msgType := tokens[0]
	version := tokens[len(tokens)-1]
	if !fourDigits.MatchString(version) {
		version = ""
	}

	msg, ok := d.schema.Lookup(msgType)
	if !ok {
		return body
	}
	d.logger.Debug().
		Str("message_type", msgType).
		Str("version", version).
		Msg("process event resolved from header")
	return msg.Description + "：" + headerText
}

func (d *Decoder) parseTimestamp(line string) *time.Time {
	ts, err := d.timestamp.Extract(line)
	if err != nil {
		return nil
	}
	return &ts
}

// processPID reads the PID token from its fixed window, falling back to a
// search of the whole header.
func processPID(header string) string {
	r := []rune(header)
	if len(r) >= pidWindowEnd {
		if w := strings.TrimSpace(string(r[pidWindowStart:pidWindowEnd])); wellFormPID.MatchString(w) {
			return w
		}
	}
	return pidToken.FindString(header)
}

// processNode reads the node number from its fixed window, falling back to
// a search of the whole header.
func processNode(header string) string {
	r := []rune(header)
	if len(r) > nodeWindowStart {
		sub := string(r[nodeWindowStart:])
		if comma := strings.IndexByte(sub, ','); comma != -1 {
			if w := strings.TrimSpace(sub[:comma]); digitsOnly.MatchString(w) {
				return w
			}
		}
	}
	if m := nodeToken.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return ""
}

func freeText(line string) string {
	r := []rune(line)
	if len(r) <= pidTextStart {
		return ""
	}
	return strings.TrimSpace(string(r[pidTextStart:]))
}
