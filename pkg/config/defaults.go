package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultSchemaDir      = "schemas"
	DefaultOutputDir      = "reports"
	DefaultHistoryFile    = "reports/history.json"
	DefaultHistoryLimit   = 50
	DefaultLogLevel       = "info"
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvSchemaDir = "WIRETRACE_SCHEMA_DIR"
	EnvOutputDir = "WIRETRACE_OUTPUT_DIR"
	EnvLogLevel  = "WIRETRACE_LOG_LEVEL"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SchemaDir:    DefaultSchemaDir,
		OutputDir:    DefaultOutputDir,
		HistoryFile:  DefaultHistoryFile,
		HistoryLimit: DefaultHistoryLimit,
		LogLevel:     DefaultLogLevel,
		Outputs:      OutputConfig{HTML: true, Plain: true, Sorted: true},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if dir := os.Getenv(EnvSchemaDir); dir != "" {
		c.SchemaDir = dir
	}
	if dir := os.Getenv(EnvOutputDir); dir != "" {
		c.OutputDir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}
