package decoder

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ccollicutt/wiretrace/pkg/schema"
)

// outputFramingWidth is the framing prefix carried by outbound content.
const outputFramingWidth = 7

// Fixed windows into cleaned message content.
const (
	messageTypeStart = 16
	messageTypeEnd   = 24
	versionStart     = 28
	versionEnd       = 32

	// minDecodableLength is the shortest content rendered as decoded fields.
	minDecodableLength = 25
)

var noisePrefix = regexp.MustCompile(`^[^A-Za-z0-9]{5,12}`)

// StripNoisePrefix trims the content and removes a leading run of 5 to 12
// non-alphanumeric characters.
func StripNoisePrefix(content string) string {
	s := strings.TrimLeftFunc(content, unicode.IsSpace)
	if loc := noisePrefix.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	return strings.TrimLeftFunc(s, unicode.IsSpace)
}

// MessageContent derives the cleaned message content from the raw second
// line of a direction record.
func MessageContent(direction, raw string) string {
	if direction == DirectionOutput && utf8.RuneCountInString(raw) >= outputFramingWidth {
		raw = string([]rune(raw)[outputFramingWidth:])
	}
	return StripNoisePrefix(raw)
}

// MessageTypeOf returns the trimmed message-type window, or "" when the
// content is too short.
func MessageTypeOf(content string) string {
	r := []rune(content)
	if len(r) < messageTypeEnd {
		return ""
	}
	return strings.TrimSpace(string(r[messageTypeStart:messageTypeEnd]))
}

// VersionOf returns the trimmed version window, or "" when the content is
// too short. A partially present window is clamped.
func VersionOf(content string) string {
	r := []rune(content)
	if len(r) < versionStart {
		return ""
	}
	end := versionEnd
	if end > len(r) {
		end = len(r)
	}
	return strings.TrimSpace(string(r[versionStart:end]))
}

// ExtractField slices a field out of content. The second result is false
// and the value is InsufficientContent when the range exceeds the content.
func ExtractField(content string, field schema.FieldSpec) (string, bool) {
	r := []rune(content)
	if field.Start < 0 || field.Start > len(r) {
		return InsufficientContent, false
	}
	switch {
	case field.Length == -1:
		return strings.TrimSpace(string(r[field.Start:])), true
	case field.Length < -1:
		return InsufficientContent, false
	}
	end := field.Start + field.Length
	if end > len(r) {
		return InsufficientContent, false
	}
	return strings.TrimSpace(string(r[field.Start:end])), true
}

// Window returns content[start:start+length) by characters, or false when
// the content is too short.
func Window(content string, start, length int) (string, bool) {
	r := []rune(content)
	if start < 0 || length <= 0 || len(r) < start+length {
		return "", false
	}
	return string(r[start : start+length]), true
}

// decodedMessage is the result of decoding message content against a schema.
type decodedMessage struct {
	msgType     string
	version     string
	description string
	known       bool

	// decoded is true when the summary was built from the fields.
	decoded bool
	summary string
	fields  []Segment
	hits    []EscapeHit
}

// decodeContent decodes cleaned message content. When the content cannot
// be decoded the summary is the content itself.
func decodeContent(sch *schema.Schema, content string) decodedMessage {
	dm := decodedMessage{
		msgType: MessageTypeOf(content),
		version: VersionOf(content),
		summary: content,
	}

	msg, ok := sch.Lookup(dm.msgType)
	if dm.msgType == "" || !ok {
		return dm
	}
	dm.known = true
	dm.description = msg.Description

	fields, ok := msg.FieldsFor(dm.version)
	if !ok {
		return dm
	}

	parts := make([]string, 0, len(fields))
	for i, f := range fields {
		display := fieldDisplay(content, f, &dm.hits)
		text := f.Name + "=" + display
		parts = append(parts, text)
		dm.fields = append(dm.fields, Segment{Kind: KindField, Text: text, Index: 5 + i})
	}
	if utf8.RuneCountInString(content) < minDecodableLength {
		return dm
	}
	dm.decoded = true
	dm.summary = msg.Description + "：" + strings.Join(parts, ",")
	return dm
}

// fieldDisplay returns the field value decorated with its escape label.
// The insufficient-content sentinel is never decorated.
func fieldDisplay(content string, f schema.FieldSpec, hits *[]EscapeHit) string {
	value, ok := ExtractField(content, f)
	if !ok || !f.HasEscapes() {
		return value
	}
	if label, found := f.Escapes[value]; found {
		return value + "(" + label + ")"
	}
	display := value + "(" + UndefinedEscape + ")"
	*hits = append(*hits, EscapeHit{Field: f.Name, Value: value, Display: display})
	return display
}
