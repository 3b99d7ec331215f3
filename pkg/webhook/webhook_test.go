package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ccollicutt/wiretrace/pkg/matcher"
	"github.com/ccollicutt/wiretrace/pkg/output"
	"github.com/ccollicutt/wiretrace/pkg/pipeline"
)

func newTestReport() *output.Report {
	res := &pipeline.RunResult{
		RunID:      "run-123",
		NamespaceA: "CORE",
		NamespaceB: "EDGE",
		Success:    true,
		FilesRead:  1,
		EntryCount: 4,
		UnitCount:  2,
		MatchStats: matcher.Stats{Groups: 2, Retries: 1, Unanswered: 1},
		Stages: []pipeline.StageRecord{
			{Name: pipeline.StageReadFiles, DurationMs: 1.5, InputCount: 1, OutputCount: 8},
		},
	}
	return output.NewReport(res, []string{"tcp_trace.3"}, "wiretrace.yaml", time.Now())
}

func TestClient_Send_Success(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string
	var receivedAuth string
	var receivedRunID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedAuth = r.Header.Get("Authorization")
		receivedRunID = r.Header.Get(RunIDHeader)
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL: server.URL,
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	if resp.Body != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}

	if receivedAuth != "" {
		t.Errorf("expected no auth header, got %s", receivedAuth)
	}

	if receivedRunID != "run-123" {
		t.Errorf("expected run id header run-123, got %q", receivedRunID)
	}

	var payload Payload
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to parse received payload: %v", err)
	}

	if payload.Event != EventRunCompleted {
		t.Errorf("expected event %s, got %s", EventRunCompleted, payload.Event)
	}
	if payload.SentAt.IsZero() {
		t.Error("payload missing sent_at")
	}
	if payload.Report == nil {
		t.Fatal("payload missing report")
	}
	if payload.Report.Summary.Groups != 2 {
		t.Errorf("expected 2 groups in payload, got %d", payload.Report.Summary.Groups)
	}
	if payload.Report.Run == nil || payload.Report.Run.RunID != "run-123" {
		t.Error("payload missing run result")
	}
}

func TestClient_Send_FailedRunEvent(t *testing.T) {
	var payload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	report := newTestReport()
	report.Run.Success = false
	report.Run.Error = "schema not found: CORE_EDGE"
	report.Summary.Success = false

	resp := NewClient().Send(context.Background(), report, SendOptions{URL: server.URL})
	if !resp.Success() {
		t.Fatalf("expected success, got error: %v", resp.Error)
	}

	if payload["event"] != EventRunFailed {
		t.Errorf("expected event %s, got %v", EventRunFailed, payload["event"])
	}
}

func TestEventFor(t *testing.T) {
	report := newTestReport()
	if got := EventFor(report); got != EventRunCompleted {
		t.Errorf("EventFor(success) = %s", got)
	}
	report.Summary.Success = false
	if got := EventFor(report); got != EventRunFailed {
		t.Errorf("EventFor(failure) = %s", got)
	}
}

func TestClient_Send_WithBearerToken(t *testing.T) {
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	report := newTestReport()

	resp := client.Send(context.Background(), report, SendOptions{
		URL:   server.URL,
		Token: "secret-token-123",
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}

	if receivedAuth != "Bearer secret-token-123" {
		t.Errorf("expected Bearer token, got %s", receivedAuth)
	}
}

func TestClient_Send_Failures(t *testing.T) {
	errorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	}))
	defer errorServer.Close()

	slowServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer slowServer.Close()

	tests := []struct {
		name       string
		opts       SendOptions
		wantStatus int
	}{
		{"server error", SendOptions{URL: errorServer.URL}, http.StatusBadGateway},
		{"timeout", SendOptions{URL: slowServer.URL, Timeout: 50 * time.Millisecond}, 0},
		{"invalid url", SendOptions{URL: "://invalid-url"}, 0},
		{"connection refused", SendOptions{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewClient().Send(context.Background(), newTestReport(), tt.opts)
			if resp.Success() {
				t.Fatal("expected failure, got success")
			}
			if resp.Error == nil {
				t.Error("expected error to be set")
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestClient_Send_CancelledContext(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := NewClient().Send(ctx, newTestReport(), SendOptions{URL: server.URL})
	if resp.Success() || resp.Error == nil {
		t.Error("expected failure for cancelled context")
	}
	if called {
		t.Error("request should not reach the server")
	}
}

func TestResponse_Success(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want bool
	}{
		{"ok", Response{StatusCode: http.StatusOK}, true},
		{"accepted", Response{StatusCode: http.StatusAccepted}, true},
		{"no content", Response{StatusCode: http.StatusNoContent}, true},
		{"redirect", Response{StatusCode: http.StatusFound}, false},
		{"unauthorized", Response{StatusCode: http.StatusUnauthorized}, false},
		{"transport error", Response{StatusCode: http.StatusOK, Error: io.ErrUnexpectedEOF}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Success(); got != tt.want {
				t.Errorf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}
