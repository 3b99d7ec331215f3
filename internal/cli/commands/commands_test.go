package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/wiretrace/pkg/history"
)

const testSchema = `{
  "REQ00001": {
    "Description": "query",
    "ResponseType": "RSP00001",
    "Fields": {"Code": {"Start": 44, "Length": 1}}
  },
  "RSP00001": {"Description": "answer"}
}`

// testSetup is a working directory with a schema, a trace file and a
// config file pointing at both.
type testSetup struct {
	dir        string
	schemaDir  string
	outputDir  string
	configPath string
	tracePath  string
}

func traceRecord(sec int, msgType, transID string) string {
	return fmt.Sprintf("01.01.24 10:00:%02d.000 Input: Node 3, 45 bytes <== 45\n", sec) +
		"0000000000000000" + msgType + "XXXX0001" + transID + "0\n"
}

// sampleTrace holds a retried, answered request and an unanswered one.
func sampleTrace() string {
	return traceRecord(0, "REQ00001", "TX0000000001") +
		traceRecord(1, "REQ00001", "TX0000000001") +
		traceRecord(2, "RSP00001", "TX0000000001") +
		traceRecord(3, "REQ00001", "TX0000000002")
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	dir := t.TempDir()
	s := &testSetup{
		dir:        dir,
		schemaDir:  filepath.Join(dir, "schemas"),
		outputDir:  filepath.Join(dir, "reports"),
		configPath: filepath.Join(dir, "wiretrace.yaml"),
		tracePath:  filepath.Join(dir, "traces", "tcp_trace.3"),
	}

	if err := os.MkdirAll(s.schemaDir, 0750); err != nil {
		t.Fatalf("Failed to create schema dir: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.tracePath), 0750); err != nil {
		t.Fatalf("Failed to create trace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.schemaDir, "CORE_EDGE.json"), []byte(testSchema), 0644); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	if err := os.WriteFile(s.tracePath, []byte(sampleTrace()), 0644); err != nil {
		t.Fatalf("Failed to create trace file: %v", err)
	}

	cfg := `schema_dir: ` + s.schemaDir + `
output_dir: ` + s.outputDir + `
history_file: ` + filepath.Join(s.outputDir, "history.json") + `
log_level: error
`
	if err := os.WriteFile(s.configPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}
	return s
}

func TestNewAnalyzeCommand(t *testing.T) {
	cmd := NewAnalyzeCommand()

	if cmd.Use != "analyze <trace-file>..." {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	flags := []string{"config", "namespace", "namespace-a", "namespace-b", "output", "log-level",
		"verbose", "quiet", "no-html", "no-plain", "no-sorted", "metrics-file",
		"webhook-url", "webhook-token", "webhook-trigger"}
	for _, flag := range flags {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Missing flag: %s", flag)
		}
	}
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	if cmd.Use != "validate <schema-file|A_B>" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	if !strings.Contains(cmd.Long, "Validate") {
		t.Error("Missing description in Long")
	}
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()

	if cmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if got := buf.String(); got != "wiretrace dev\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestRunValidate_SchemaFile(t *testing.T) {
	s := newTestSetup(t)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{filepath.Join(s.schemaDir, "CORE_EDGE.json")})

	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Schema valid!", "Message types: 2", "Requests:      1", "Fields:        1", "REQ00001 query -> RSP00001"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunValidate_Namespace(t *testing.T) {
	s := newTestSetup(t)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"CORE_EDGE", "-c", s.configPath})

	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !strings.Contains(buf.String(), filepath.Join(s.schemaDir, "CORE_EDGE.json")) {
		t.Errorf("output missing resolved path:\n%s", buf.String())
	}
}

func TestRunValidate_InvalidSchema(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "CORE_EDGE.json")

	if err := os.WriteFile(path, []byte(`{"REQ00001": {"Fields": {"Code": {"Start": "x"}}}}`), 0644); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{path})
	cmd.SetOut(&bytes.Buffer{})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error for invalid schema")
	}
}

func TestRunValidate_UnknownNamespace(t *testing.T) {
	s := newTestSetup(t)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"CORE_NOPE", "-c", s.configPath})
	cmd.SetOut(&bytes.Buffer{})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error for unknown namespace")
	}
}

func TestRunValidate_MalformedTarget(t *testing.T) {
	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"/nonexistent/schema"})
	cmd.SetOut(&bytes.Buffer{})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestRunHistory(t *testing.T) {
	s := newTestSetup(t)
	store := history.NewFileStore(filepath.Join(s.outputDir, "history.json"))
	for i := 1; i <= 3; i++ {
		err := store.Append(context.Background(), history.Record{
			Timestamp:  fmt.Sprintf("20240101_10000%d", i),
			RunID:      fmt.Sprintf("run-%d", i),
			NamespaceA: "CORE",
			NamespaceB: "EDGE",
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	t.Run("text", func(t *testing.T) {
		cmd := NewHistoryCommand()
		cmd.SetArgs([]string{"-c", s.configPath})
		var buf bytes.Buffer
		cmd.SetOut(&buf)

		if err := cmd.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
		}
		if !strings.Contains(lines[0], "run-1") || !strings.Contains(lines[2], "run-3") {
			t.Errorf("records not oldest first:\n%s", buf.String())
		}
	})

	t.Run("json last", func(t *testing.T) {
		cmd := NewHistoryCommand()
		cmd.SetArgs([]string{"-c", s.configPath, "-o", "json", "--last", "2"})
		var buf bytes.Buffer
		cmd.SetOut(&buf)

		if err := cmd.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var records []history.Record
		if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(records) != 2 || records[0].RunID != "run-2" {
			t.Errorf("unexpected records: %+v", records)
		}
	})
}

func TestRunHistory_Empty(t *testing.T) {
	s := newTestSetup(t)

	cmd := NewHistoryCommand()
	cmd.SetArgs([]string{"-c", s.configPath})
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No runs recorded") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestRunHistory_Errors(t *testing.T) {
	s := newTestSetup(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"-c", s.configPath, "-o", "xml"}},
		{"negative last", []string{"-c", s.configPath, "--last", "-1"}},
		{"missing config", []string{"-c", filepath.Join(s.dir, "missing.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewHistoryCommand()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			if err := cmd.ExecuteContext(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	s := newTestSetup(t)
	cfg, err := loadConfig(context.Background(), s.configPath)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if _, err := newLogger(&bytes.Buffer{}, cfg, ""); err != nil {
		t.Errorf("configured level rejected: %v", err)
	}
	if _, err := newLogger(&bytes.Buffer{}, cfg, "DEBUG"); err != nil {
		t.Errorf("override rejected: %v", err)
	}
	if _, err := newLogger(&bytes.Buffer{}, cfg, "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}
