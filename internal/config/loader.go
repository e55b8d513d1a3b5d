package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the completion-service providers the loader
// recognises. [Validate] warns about unknown names rather than failing, so
// newly supported backends do not require a config-schema release.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.LLM.Provider == "" {
		errs = append(errs, errors.New("llm.provider is required"))
	} else if !slices.Contains(ValidProviderNames, cfg.LLM.Provider) {
		slog.Warn("unrecognised llm.provider; continuing anyway", "provider", cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}

	if cfg.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgres_dsn is required"))
	}

	if cfg.Analysis.CompletionTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("analysis.completion_timeout_seconds %d must not be negative", cfg.Analysis.CompletionTimeoutSeconds))
	}
	if cfg.Analysis.BreakerMaxFailures < 0 {
		errs = append(errs, fmt.Errorf("analysis.breaker_max_failures %d must not be negative", cfg.Analysis.BreakerMaxFailures))
	}

	if cfg.Batch.GroupSize < 0 {
		errs = append(errs, fmt.Errorf("batch.group_size %d must not be negative", cfg.Batch.GroupSize))
	}
	if cfg.Batch.PauseSeconds < 0 {
		errs = append(errs, fmt.Errorf("batch.pause_seconds %d must not be negative", cfg.Batch.PauseSeconds))
	}
	if cfg.Batch.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("batch.max_concurrent %d must not be negative", cfg.Batch.MaxConcurrent))
	}
	if cfg.Batch.MaxConcurrent > 0 && cfg.Batch.GroupSize > 0 && cfg.Batch.MaxConcurrent > cfg.Batch.GroupSize {
		slog.Warn("batch.max_concurrent exceeds batch.group_size; the group size is the effective limit",
			"max_concurrent", cfg.Batch.MaxConcurrent,
			"group_size", cfg.Batch.GroupSize)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
