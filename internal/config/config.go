// Package config provides the configuration schema and loader for the
// callgrade analysis service.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for callgrade.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Batch    BatchConfig    `yaml:"batch"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the /metrics and /healthz endpoints
	// listen on (e.g., ":9090"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// LLMConfig selects and configures the completion-service backend.
type LLMConfig struct {
	// Provider selects the backend (e.g., "openai", "anthropic", "ollama").
	// "openai" uses the official SDK directly; everything else goes through
	// the any-llm multi-provider wrapper.
	Provider string `yaml:"provider"`

	// Model selects a specific model (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// APIKey is the authentication key for the provider's API if any.
	// Falls back to the provider's conventional environment variable when
	// empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	// PostgresDSN is the connection string for the analysis, scorecard, and
	// call tables.
	PostgresDSN string `yaml:"postgres_dsn"`

	// MigrateOnStart applies the embedded schema DDL at startup.
	MigrateOnStart bool `yaml:"migrate_on_start"`
}

// AnalysisConfig tunes the single-call analysis pipeline.
type AnalysisConfig struct {
	// CompletionTimeoutSeconds bounds each completion-service invocation.
	// Expiry is treated as a transport failure. Default: 60.
	CompletionTimeoutSeconds int `yaml:"completion_timeout_seconds"`

	// BreakerMaxFailures is the consecutive-failure threshold that opens
	// the completion-service circuit breaker. Default: 5.
	BreakerMaxFailures int `yaml:"breaker_max_failures"`

	// BreakerResetSeconds is how long the breaker stays open before a probe
	// call. Default: 30.
	BreakerResetSeconds int `yaml:"breaker_reset_seconds"`
}

// BatchConfig tunes backlog processing.
type BatchConfig struct {
	// GroupSize is how many calls are analysed concurrently per group.
	// Default: 5.
	GroupSize int `yaml:"group_size"`

	// PauseSeconds is the backpressure pause between groups. Default: 2.
	PauseSeconds int `yaml:"pause_seconds"`

	// MaxConcurrent caps concurrent analyses across the run, independent of
	// group size. Default: the group size.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MinDurationSeconds is the duration a call must exceed to be eligible.
	// Default: 180.
	MinDurationSeconds int `yaml:"min_duration_seconds"`

	// MinTranscriptChars is the transcript length a call must exceed to be
	// eligible. Default: 50.
	MinTranscriptChars int `yaml:"min_transcript_chars"`
}
