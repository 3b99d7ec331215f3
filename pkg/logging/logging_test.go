package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.WarnLevel)

	logger.Info().Msg("hidden")
	logger.Warn().Str("stage", "decode").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "stage=")
}

func TestNewJSON_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf, zerolog.InfoLevel)
	logger.Info().Str("run_id", "abc").Msg("run completed")

	v, err := fastjson.Parse(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, App, string(v.GetStringBytes("app")))
	assert.Equal(t, "abc", string(v.GetStringBytes("run_id")))
	assert.Equal(t, "run completed", string(v.GetStringBytes("message")))
	assert.Equal(t, "info", string(v.GetStringBytes("level")))
}
