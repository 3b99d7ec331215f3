// Package config provides configuration loading and validation for wiretrace.
package config

import "time"

// Config is the root configuration structure, loaded from YAML or TOML.
type Config struct {
	// SchemaDir holds one <A>_<B>.json schema document per namespace pair.
	SchemaDir string `yaml:"schema_dir" toml:"schema_dir"`

	// OutputDir receives reports and text exports.
	OutputDir string `yaml:"output_dir" toml:"output_dir"`

	// HistoryFile is the run-history JSON file. Empty disables history.
	HistoryFile string `yaml:"history_file" toml:"history_file"`

	// HistoryLimit is the number of runs kept, at most 50. Defaults to 50.
	HistoryLimit int `yaml:"history_limit,omitempty" toml:"history_limit"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	Outputs  OutputConfig    `yaml:"outputs" toml:"outputs"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks"`
}

// OutputConfig selects the artifacts produced by a run.
type OutputConfig struct {
	HTML   bool `yaml:"html" toml:"html"`
	Plain  bool `yaml:"plain" toml:"plain"`
	Sorted bool `yaml:"sorted" toml:"sorted"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerAlways fires after every run (default).
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerOnFailure fires only when a run fails.
	WebhookTriggerOnFailure WebhookTrigger = "on_failure"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for run results.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty" toml:"name"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url" toml:"url"`

	// Token is an optional bearer token. ${VAR} and $VAR are expanded.
	Token string `yaml:"token,omitempty" toml:"token"`

	// Trigger defaults to "always".
	Trigger WebhookTrigger `yaml:"trigger,omitempty" toml:"trigger"`

	// Timeout defaults to 10s.
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}
