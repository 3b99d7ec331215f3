package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
)

func entryAt(seq int, rendered string, ts *time.Time) *decoder.Entry {
	return &decoder.Entry{Seq: seq, Rendered: rendered, Timestamp: ts}
}

func at(sec int) *time.Time {
	t := time.Date(2024, 1, 1, 10, 0, sec, 0, time.UTC)
	return &t
}

func TestTextExporter_DecodeOrder(t *testing.T) {
	entries := []*decoder.Entry{
		entryAt(0, "second", at(2)),
		entryAt(1, "first", at(1)),
		entryAt(2, "untimed", nil),
	}
	path := filepath.Join(t.TempDir(), "nested", "converted.log")

	require.NoError(t, NewTextExporter().Export(context.Background(), entries, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\nfirst\nuntimed\n", string(data))
}

func TestSortedExporter_OrdersByTimeAndDropsUntimed(t *testing.T) {
	entries := []*decoder.Entry{
		entryAt(0, "c", at(3)),
		entryAt(1, "a", at(1)),
		entryAt(2, "untimed", nil),
		entryAt(3, "b1", at(2)),
		entryAt(4, "b2", at(2)),
	}
	path := filepath.Join(t.TempDir(), "sorted.log")

	require.NoError(t, NewSortedExporter().Export(context.Background(), entries, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb1\nb2\nc\n", string(data))
	assert.Equal(t, "c", entries[0].Rendered, "input must not be reordered")
}

func TestTextExporter_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	require.NoError(t, NewTextExporter().Export(context.Background(), nil, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestTextExporter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "x.log")
	err := NewTextExporter().Export(ctx, nil, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}
