package parser

import (
	"regexp"
	"testing"
	"time"
)

func TestTraceTimestampExtractor_Extract(t *testing.T) {
	extractor := NewTraceTimestampExtractor()

	tests := []struct {
		name    string
		line    string
		want    time.Time
		wantErr bool
	}{
		{
			name: "direction header",
			line: "23.10.24 08:15:02.120 Input: Node 3, 48 bytes <== 48",
			want: time.Date(2024, 10, 23, 8, 15, 2, 120*int(time.Millisecond), time.UTC),
		},
		{
			name: "process header",
			line: "01.02.25 23:59:59.999 PID=1234 D Node 7, *** START *** (boot)",
			want: time.Date(2025, 2, 1, 23, 59, 59, 999*int(time.Millisecond), time.UTC),
		},
		{
			name:    "content line",
			line:    "0000000000000000ZZREQ001",
			wantErr: true,
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: true,
		},
		{
			name:    "impossible date",
			line:    "45.13.24 08:15:02.120 Input",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractor.Extract(tt.line)
			if (err != nil) != tt.wantErr {
				t.Errorf("Extract() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("Extract() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimestampExtractor_CustomPattern(t *testing.T) {
	pattern := regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\]`)
	extractor := NewTimestampExtractor(pattern, "2006-01-02 15:04:05")

	got, err := extractor.Extract("[2024-01-15 10:30:00] message")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}
