package report

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
	"github.com/ccollicutt/wiretrace/pkg/matcher"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.html"))

// displayTimeLayout is used for timestamps on the analysis page.
const displayTimeLayout = "2006-01-02 15:04:05.000"

// unknownMessageType labels anomalies on entries without a message type.
const unknownMessageType = "未知报文"

// HTMLRenderer writes the analysis page and its raw-view companion.
type HTMLRenderer struct {
	logger zerolog.Logger
}

// HTMLOption configures an HTMLRenderer.
type HTMLOption func(*HTMLRenderer)

// WithLogger sets the renderer's logger.
func WithLogger(logger zerolog.Logger) HTMLOption {
	return func(r *HTMLRenderer) {
		r.logger = logger
	}
}

// NewHTMLRenderer creates an HTMLRenderer.
func NewHTMLRenderer(opts ...HTMLOption) *HTMLRenderer {
	r := &HTMLRenderer{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type segmentView struct {
	Class string
	Text  string
	Title string
}

type lineView struct {
	ID          string
	RawAnchor   string
	TimestampMs int64
	MessageType string
	Direction   bool
	Segments    []segmentView
	Anomaly     bool
}

type unitView struct {
	Index      int
	Line       lineView
	Group      bool
	TransGroup string
	Retries    []lineView
	Response   *lineView
	Unanswered bool
}

type anomalyView struct {
	Anchor      string
	Time        string
	MessageType string
	Fields      []string
	Details     []string
}

type pageView struct {
	Title        string
	RawFile      string
	MessageTypes []string
	Units        []unitView
	Anomalies    []anomalyView
	EntryCount   int
	GroupCount   int
}

type rawEntryView struct {
	Anchor string
	Text   string
}

type rawPageView struct {
	Title   string
	Entries []rawEntryView
}

// Render writes the analysis page to path and the raw view next to it.
// It returns the path of the analysis page.
func (r *HTMLRenderer) Render(ctx context.Context, units []matcher.Unit, entries []*decoder.Entry, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	rawName := RawName(path)
	rawPath := filepath.Join(filepath.Dir(path), rawName)
	title := filepath.Base(path)

	page := buildPage(title, rawName, units, entries)
	if err := writeTemplate(path, "report.html", page); err != nil {
		return "", err
	}

	raw := rawPageView{Title: title}
	for _, e := range entries {
		raw.Entries = append(raw.Entries, rawEntryView{
			Anchor: rawAnchor(e),
			Text:   e.RawLine1 + "\n" + e.RawLine2,
		})
	}
	if err := writeTemplate(rawPath, "raw.html", raw); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			r.logger.Warn().Err(rmErr).Str("report", path).Msg("removing analysis page failed")
		}
		return "", err
	}

	r.logger.Info().
		Str("report", path).
		Str("raw", rawPath).
		Int("units", len(units)).
		Int("anomalies", len(page.Anomalies)).
		Msg("html report written")
	return path, nil
}

func writeTemplate(path, name string, data any) error {
	f, err := os.Create(path) // #nosec G304 -- path is built from the configured output directory
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func buildPage(title, rawFile string, units []matcher.Unit, entries []*decoder.Entry) pageView {
	page := pageView{
		Title:        title,
		RawFile:      rawFile,
		MessageTypes: messageTypes(entries),
		EntryCount:   len(entries),
	}

	for i, u := range units {
		uv := unitView{Index: i}
		switch v := u.(type) {
		case *matcher.TransactionGroup:
			page.GroupCount++
			uv.Group = true
			uv.TransGroup = fmt.Sprintf("trans_%d", i)
			uv.Line = buildLine(fmt.Sprintf("ts_%d", i), v.Anchor())
			for _, req := range v.Requests[:len(v.Requests)-1] {
				uv.Retries = append(uv.Retries, buildLine("", req))
			}
			if v.Response != nil {
				resp := buildLine(fmt.Sprintf("ts_%d_resp", i), v.Response)
				uv.Response = &resp
			} else {
				uv.Unanswered = true
			}
			page.Anomalies = appendAnomaly(page.Anomalies, v.Anchor(), uv.Line.ID)
			if v.Response != nil {
				page.Anomalies = appendAnomaly(page.Anomalies, v.Response, uv.Response.ID)
			}
		case *matcher.PlainEntry:
			uv.Line = buildLine(fmt.Sprintf("ts_%d", i), v.Entry)
			page.Anomalies = appendAnomaly(page.Anomalies, v.Entry, uv.Line.ID)
		}
		page.Units = append(page.Units, uv)
	}

	return page
}

func buildLine(id string, e *decoder.Entry) lineView {
	lv := lineView{
		ID:          id,
		RawAnchor:   rawAnchor(e),
		MessageType: e.MessageType(),
		Direction:   e.Direction() != "",
		Anomaly:     e.HasAnomaly(),
	}
	if e.Timestamp != nil {
		lv.TimestampMs = e.Timestamp.UnixMilli()
	}

	lv.Segments = append(lv.Segments, segmentView{Class: "seg-ts", Text: timestampText(e)})
	if lv.Direction {
		dirClass := "seg-dir"
		switch e.Direction() {
		case decoder.DirectionInput:
			dirClass += " seg-in"
		case decoder.DirectionOutput:
			dirClass += " seg-out"
		}
		lv.Segments = append(lv.Segments,
			segmentView{Class: dirClass, Text: e.Direction()},
			segmentView{Class: "seg-node", Text: e.Node()},
		)
		msgSeg, _ := e.Segment(decoder.KindMessageType)
		title := ""
		if msgSeg.Description != "" {
			title = msgSeg.Description + ":" + e.Text(decoder.KindVersion)
		}
		lv.Segments = append(lv.Segments, segmentView{Class: "seg-msgtype", Text: msgSeg.Text, Title: title})
		for _, f := range e.Fields() {
			lv.Segments = append(lv.Segments, segmentView{
				Class: fmt.Sprintf("seg-free seg-c%d", f.Index%5),
				Text:  f.Text,
			})
		}
		return lv
	}

	for _, kind := range []decoder.SegmentKind{decoder.KindPID, decoder.KindNode, decoder.KindPIDMessage1, decoder.KindPIDMessage2} {
		if text := e.Text(kind); text != "" {
			lv.Segments = append(lv.Segments, segmentView{Class: "seg-" + string(kind), Text: text})
		}
	}
	return lv
}

func appendAnomaly(items []anomalyView, e *decoder.Entry, anchor string) []anomalyView {
	if !e.HasAnomaly() {
		return items
	}
	seen := make(map[string]bool)
	av := anomalyView{
		Anchor:      anchor,
		Time:        timestampText(e),
		MessageType: e.MessageType(),
	}
	if av.MessageType == "" {
		av.MessageType = unknownMessageType
	}
	for _, hit := range e.EscapeHits {
		if !seen[hit.Field] {
			seen[hit.Field] = true
			av.Fields = append(av.Fields, hit.Field)
		}
		av.Details = append(av.Details, hit.Field+"="+hit.Display)
	}
	sort.Strings(av.Fields)
	return append(items, av)
}

func messageTypes(entries []*decoder.Entry) []string {
	seen := make(map[string]bool)
	var types []string
	for _, e := range entries {
		mt := strings.TrimSpace(e.MessageType())
		if mt != "" && !seen[mt] {
			seen[mt] = true
			types = append(types, mt)
		}
	}
	sort.Strings(types)
	return types
}

func timestampText(e *decoder.Entry) string {
	if e.Timestamp != nil {
		return e.Timestamp.Format(displayTimeLayout)
	}
	return e.Text(decoder.KindTimestamp)
}

func rawAnchor(e *decoder.Entry) string {
	return fmt.Sprintf("log_%d", e.Seq)
}
