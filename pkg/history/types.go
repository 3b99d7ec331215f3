// Package history keeps a bounded log of completed analysis runs.
package history

import (
	"context"
	"errors"
)

// DefaultCapacity is the number of most recent records kept.
const DefaultCapacity = 50

// ErrCorrupt is returned when the history file cannot be decoded.
var ErrCorrupt = errors.New("history file is corrupt")

// StageRecord is the timing of one pipeline stage.
type StageRecord struct {
	Name        string  `json:"stage"`
	DurationMs  float64 `json:"duration_ms"`
	InputCount  int     `json:"input_items"`
	OutputCount int     `json:"output_items"`
}

// Options records which artifacts a run was asked to produce.
type Options struct {
	GenerateHTML   bool `json:"generate_html"`
	GeneratePlain  bool `json:"generate_original_log"`
	GenerateSorted bool `json:"generate_sorted_log"`
}

// Record is one completed run.
type Record struct {
	// Timestamp is the local run time formatted as 20060102_150405.
	Timestamp     string        `json:"timestamp"`
	RunID         string        `json:"run_id"`
	NamespaceA    string        `json:"namespace_a"`
	NamespaceB    string        `json:"namespace_b"`
	LogFiles      []string      `json:"log_files"`
	LogFileCount  int           `json:"log_file_count"`
	LogEntryCount int           `json:"log_entry_count"`
	Options       Options       `json:"options"`
	Stages        []StageRecord `json:"stages"`
}

// Store appends and lists run records, oldest first. Implementations keep
// at most their capacity and must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
}

// trim keeps the last capacity records.
func trim(records []Record, capacity int) []Record {
	if capacity > 0 && len(records) > capacity {
		return records[len(records)-capacity:]
	}
	return records
}
