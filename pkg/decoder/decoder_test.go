package decoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/wiretrace/pkg/schema"
)

const inputHeader = "01.01.24 10:00:00.000 Input: Node 5, 20 bytes ==> 3"

// buildContent lays out message content: 16 filler characters, the type
// window, 4 filler characters, the version window, then the payload.
func buildContent(msgType, version, payload string) string {
	return "0000000000000000" + msgType + "XXXX" + version + payload
}

func greetSchema() *schema.Schema {
	return schema.New(&schema.MessageSchema{
		Type:        "HELLOTYP",
		Description: "greet",
		Fields: []schema.FieldSpec{
			{Name: "F1", Start: 16, Length: 8},
		},
	})
}

func TestDecode_ShortContentIsNotDecoded(t *testing.T) {
	d := New(schema.New(&schema.MessageSchema{
		Type:        "HELLOTYP",
		Description: "greet",
		Fields:      []schema.FieldSpec{{Name: "F1", Start: 0, Length: 8}},
	}))

	entries := d.Decode([]string{inputHeader, "HELLOTYP2024FIELDADATA"})
	require.Len(t, entries, 1)
	e := entries[0]

	// 22 characters: too short for the type window [16:24).
	assert.Equal(t, "", e.MessageType())
	assert.Equal(t, "", e.Text(KindVersion))
	assert.Empty(t, e.Fields())
	assert.Equal(t, "01.01.24 10:00:00.000 Input    5：HELLOTYP2024FIELDADATA", e.Rendered)

	value, ok := ExtractField("HELLOTYP2024FIELDADATA", schema.FieldSpec{Start: 0, Length: 8})
	assert.True(t, ok)
	assert.Equal(t, "HELLOTYP", value)
}

func TestDecode_DirectionRecord(t *testing.T) {
	content := buildContent("HELLOTYP", "2024", "FIELDADATA")
	entries := New(greetSchema()).Decode([]string{inputHeader, content})
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, 0, e.Seq)
	assert.Equal(t, inputHeader, e.RawLine1)
	assert.Equal(t, content, e.RawLine2)
	assert.Equal(t, "01.01.24 10:00:00.000 Input    5：greet：F1=HELLOTYP", e.Rendered)
	assert.False(t, e.IsProcessEvent())

	assert.Equal(t, []Segment{
		{Kind: KindTimestamp, Text: "01.01.24 10:00:00.000", Index: 0},
		{Kind: KindDirection, Text: "Input", Index: 1},
		{Kind: KindNode, Text: "5", Index: 2},
		{Kind: KindMessageType, Text: "HELLOTYP", Index: 3, Description: "greet"},
		{Kind: KindVersion, Text: "2024", Index: 4},
		{Kind: KindField, Text: "F1=HELLOTYP", Index: 5},
	}, e.Segments)

	require.NotNil(t, e.Timestamp)
	assert.True(t, e.Timestamp.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDecode_VersionedSchema(t *testing.T) {
	sch := schema.New(&schema.MessageSchema{
		Type:        "HELLOTYP",
		Description: "greet",
		Versions: map[string][]schema.FieldSpec{
			"0001": {{Name: "A", Start: 32, Length: 5}},
		},
	})
	d := New(sch)

	known := buildContent("HELLOTYP", "0001", "FIELDADATA")
	entries := d.Decode([]string{inputHeader, known})
	require.Len(t, entries, 1)
	assert.Equal(t, []Segment{{Kind: KindField, Text: "A=FIELD", Index: 5}}, entries[0].Fields())

	unknown := buildContent("HELLOTYP", "2024", "FIELDADATA")
	entries = d.Decode([]string{inputHeader, unknown})
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Fields())
	assert.Equal(t, "01.01.24 10:00:00.000 Input    5："+unknown, entries[0].Rendered)
	assert.Equal(t, "HELLOTYP", entries[0].MessageType())
}

func TestDecode_OutputStripsFramingAndNoise(t *testing.T) {
	content := buildContent("HELLOTYP", "2024", "FIELDADATA")
	raw := "FRAMING" + "#~#~#" + content
	header := "01.01.24 10:00:01.500 Output: Node 12, 60 bytes ==> 60"

	entries := New(greetSchema()).Decode([]string{header, raw})
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, "Output", e.Direction())
	assert.Equal(t, "12", e.Node())
	assert.Equal(t, "HELLOTYP", e.MessageType())
	assert.Equal(t, raw, e.RawLine2)
	assert.Equal(t, "01.01.24 10:00:01.500 Output  12：greet：F1=HELLOTYP", e.Rendered)
	assert.Equal(t, content, MessageContent(DirectionOutput, raw))
}

func TestStripNoisePrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no noise", "ABC123", "ABC123"},
		{"five noise chars", "#####ABC", "ABC"},
		{"four noise chars kept", "####ABC", "####ABC"},
		{"twelve noise chars", "############ABC", "ABC"},
		{"longer run cut at twelve", "##############ABC", "##ABC"},
		{"surrounding spaces", "  ##### ABC", "ABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripNoisePrefix(tt.in))
		})
	}
}

func TestExtractField_FixedWidth(t *testing.T) {
	field := schema.FieldSpec{Name: "F", Start: 5, Length: 3}

	value, ok := ExtractField("abcdefgh", field)
	assert.True(t, ok)
	assert.Equal(t, "fgh", value)

	value, ok = ExtractField("abcdefg", field)
	assert.False(t, ok)
	assert.Equal(t, InsufficientContent, value)

	value, ok = ExtractField("abcdefg", schema.FieldSpec{Start: 5, Length: -1})
	assert.True(t, ok)
	assert.Equal(t, "fg", value)

	value, ok = ExtractField("abc", schema.FieldSpec{Start: 5, Length: -1})
	assert.False(t, ok)
	assert.Equal(t, InsufficientContent, value)

	value, ok = ExtractField("abcdefg", schema.FieldSpec{Start: 1, Length: -4})
	assert.False(t, ok)
	assert.Equal(t, InsufficientContent, value)
}

func TestExtractField_CountsCharacters(t *testing.T) {
	value, ok := ExtractField("节点一二三ABC", schema.FieldSpec{Start: 5, Length: 3})
	assert.True(t, ok)
	assert.Equal(t, "ABC", value)
}

func TestDecode_EscapeResolution(t *testing.T) {
	sch := schema.New(&schema.MessageSchema{
		Type:        "HELLOTYP",
		Description: "greet",
		Fields: []schema.FieldSpec{
			{Name: "Mode", Start: 32, Length: 1, Escapes: map[string]string{"1": "busy"}},
			{Name: "Code", Start: 33, Length: 2, Escapes: map[string]string{"00": "ok"}},
			{Name: "Raw", Start: 35, Length: 2},
			{Name: "Far", Start: 90, Length: 2, Escapes: map[string]string{"00": "ok"}},
		},
	})

	content := buildContent("HELLOTYP", "0001", "177XY")
	entries := New(sch).Decode([]string{inputHeader, content})
	require.Len(t, entries, 1)
	e := entries[0]

	var texts []string
	for _, f := range e.Fields() {
		texts = append(texts, f.Text)
	}
	assert.Equal(t, []string{
		"Mode=1(busy)",
		"Code=77(" + UndefinedEscape + ")",
		"Raw=XY",
		"Far=" + InsufficientContent,
	}, texts)
}

// Escape misses are recorded on the entry. Leaving EscapeHits empty and
// deferring anomaly flagging was the other reading; this pins the choice.
func TestDecode_EscapeMissesPopulateEscapeHits(t *testing.T) {
	sch := schema.New(&schema.MessageSchema{
		Type:        "HELLOTYP",
		Description: "greet",
		Fields: []schema.FieldSpec{
			{Name: "Mode", Start: 32, Length: 1, Escapes: map[string]string{"1": "busy"}},
			{Name: "Far", Start: 90, Length: 2, Escapes: map[string]string{"00": "ok"}},
		},
	})
	d := New(sch)

	entries, stats := d.DecodeWithStats([]string{inputHeader, buildContent("HELLOTYP", "0001", "9")})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].HasAnomaly())
	assert.Equal(t, []EscapeHit{{Field: "Mode", Value: "9", Display: "9(" + UndefinedEscape + ")"}}, entries[0].EscapeHits)
	assert.Equal(t, 1, stats.EscapeMisses)

	entries = d.Decode([]string{inputHeader, buildContent("HELLOTYP", "0001", "1")})
	require.Len(t, entries, 1)
	assert.False(t, entries[0].HasAnomaly())
}

func TestDecode_SkipsMarkersAndHeartbeats(t *testing.T) {
	lines := []string{
		"",
		inputHeader,
		"???x",
		inputHeader,
		"0000000000PING_IPS0000000000",
		"   ",
		"garbage line",
		inputHeader,
		buildContent("HELLOTYP", "2024", "FIELDADATA"),
	}

	entries, stats := New(greetSchema()).DecodeWithStats(lines)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Seq)

	assert.Equal(t, Stats{
		Lines:        9,
		Blank:        2,
		Markers:      2,
		Unrecognized: 3,
		Direction:    1,
	}, stats)
	assert.Equal(t, 1, stats.Entries())
}

func TestDecode_LongQuestionMarksAreDecoded(t *testing.T) {
	entries := New(greetSchema()).Decode([]string{inputHeader, "???-long-enough-content"})
	require.Len(t, entries, 1)
	assert.Equal(t, "???-long-enough-content", entries[0].RawLine2)
}

func TestDecode_MissingBodyAtEnd(t *testing.T) {
	entries := New(greetSchema()).Decode([]string{inputHeader})
	require.Len(t, entries, 1)
	assert.Equal(t, MissingBody, entries[0].RawLine2)
	assert.Equal(t, "01.01.24 10:00:00.000 Input    5："+MissingBody, entries[0].Rendered)
}

func TestDecode_ProcessEvent(t *testing.T) {
	sch := schema.New(&schema.MessageSchema{Type: "START", Description: "Start event"})
	header := "23.10.24 08:15:02.120 PID=12345 D Node 7, *** START 0001 *** (boot)"
	body := "0123456789012345678901234567890123456789012345 tail text"

	entries := New(sch).Decode([]string{header, body})
	require.Len(t, entries, 1)
	e := entries[0]

	assert.True(t, e.IsProcessEvent())
	assert.Equal(t, "", e.MessageType())
	assert.Equal(t, "Start event：START 0001", e.Rendered)
	assert.Equal(t, []Segment{
		{Kind: KindTimestamp, Text: "23.10.24 08:15:02.120", Index: 0},
		{Kind: KindPID, Text: "PID=12345", Index: 1},
		{Kind: KindNode, Text: "7", Index: 2},
		{Kind: KindPIDMessage1, Text: "START 0001 *** (boot)", Index: 3},
		{Kind: KindPIDMessage2, Text: "5 tail text", Index: 4},
	}, e.Segments)
}

func TestDecode_ProcessEventFallbacks(t *testing.T) {
	header := "23.10.24 08:15:02.120 PID=42 D Node 315, *** STOP *** (x)"

	entries := New(schema.New()).Decode([]string{header})
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, "PID=42", e.Text(KindPID))
	assert.Equal(t, "315", e.Node())
	assert.Equal(t, MissingBody, e.RawLine2)
	// Unknown type and a single header token: the body is the summary.
	assert.Equal(t, MissingBody, e.Rendered)
	_, ok := e.Segment(KindPIDMessage2)
	assert.False(t, ok)
}

func TestDecode_TypeOnlyContentKeepsFieldSegments(t *testing.T) {
	d := New(schema.New(&schema.MessageSchema{
		Type:        "HELLOTYP",
		Description: "greet",
		Fields: []schema.FieldSpec{
			{Name: "F1", Start: 16, Length: 8},
			{Name: "F2", Start: 20, Length: 4, Escapes: map[string]string{"ZZZZ": "never"}},
		},
	}))

	// 24 characters: the type resolves but the summary stays raw.
	content := "0000000000000000HELLOTYP"
	entries := d.Decode([]string{inputHeader, content})
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, "HELLOTYP", e.MessageType())
	assert.Equal(t, "01.01.24 10:00:00.000 Input    5："+content, e.Rendered)
	assert.Equal(t, []Segment{
		{Kind: KindField, Text: "F1=HELLOTYP", Index: 5},
		{Kind: KindField, Text: "F2=OTYP(" + UndefinedEscape + ")", Index: 6},
	}, e.Fields())
	require.Len(t, e.EscapeHits, 1)
	assert.Equal(t, "F2", e.EscapeHits[0].Field)
}

func TestDecode_ProcessEventBodyDecoded(t *testing.T) {
	header := "23.10.24 08:15:02.120 PID=12345 D Node 7, *** HELLOTYP 2024 *** (x)"
	body := buildContent("HELLOTYP", "2024", "FIELDADATA")

	entries := New(greetSchema()).Decode([]string{header, body})
	require.Len(t, entries, 1)
	assert.Equal(t, "greet：F1=HELLOTYP", entries[0].Rendered)
	assert.Empty(t, entries[0].Fields())
}

func TestDecode_UnparseableTimestamp(t *testing.T) {
	header := "45.13.24 10:00:00.000 Input: Node 5, 20 bytes ==> 3"
	entries := New(greetSchema()).Decode([]string{header, buildContent("HELLOTYP", "2024", "X")})
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Timestamp)
	assert.Equal(t, "45.13.24 10:00:00.000", entries[0].Text(KindTimestamp))
}

func TestDecode_SequenceNumbers(t *testing.T) {
	content := buildContent("HELLOTYP", "2024", "FIELDADATA")
	lines := []string{inputHeader, content, "noise", inputHeader, content, inputHeader, content}

	entries := New(greetSchema()).Decode(lines)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i, e.Seq)
	}
}
