// Package config loads client configuration from files and environment
// variables and converts it into the runtime types the service consumes.
package config

import (
	"time"

	"github.com/bkyoung/llmclient/resilience"
)

// Config represents the full client configuration.
type Config struct {
	DefaultProvider string                    `yaml:"defaultProvider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	Retry           RetryConfig               `yaml:"retry"`
	Breaker         BreakerConfig             `yaml:"breaker"`
	Budget          BudgetConfig              `yaml:"budget"`
	Logging         LoggingConfig             `yaml:"logging"`
	Ledger          LedgerConfig              `yaml:"ledger"`
}

// ProviderConfig configures a single provider.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`

	// Overrides (optional, use global settings if not set)
	Timeout    *string `yaml:"timeout,omitempty"`
	MaxRetries *int    `yaml:"maxRetries,omitempty"`
}

// RetryConfig holds global retry settings. Durations are strings in Go
// duration syntax ("1s", "500ms").
type RetryConfig struct {
	Enabled           bool    `yaml:"enabled"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
	Jitter            float64 `yaml:"jitter"`
	RetryableStatuses []int   `yaml:"retryableStatuses"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold int    `yaml:"failureThreshold"`
	ResetTimeout     string `yaml:"resetTimeout"`
}

// BudgetConfig caps token usage. Zero means unbounded.
type BudgetConfig struct {
	DailyTokens   int `yaml:"dailyTokens"`
	MonthlyTokens int `yaml:"monthlyTokens"`
}

// LoggingConfig configures request/response logging.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Level         string `yaml:"level"`         // debug, info, error
	Format        string `yaml:"format"`        // json, human
	RedactAPIKeys bool   `yaml:"redactAPIKeys"` // Redact API keys in logs
}

// LedgerConfig configures the SQLite usage ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// BuildRetryConfig converts the retry section, applying an optional
// per-provider override, into the executor's configuration.
func BuildRetryConfig(retry RetryConfig, provider *ProviderConfig) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()

	if retry.MaxRetries > 0 {
		cfg.MaxRetries = retry.MaxRetries
	}
	if provider != nil && provider.MaxRetries != nil {
		cfg.MaxRetries = *provider.MaxRetries
	}
	cfg.InitialBackoff = parseDuration(retry.InitialBackoff, cfg.InitialBackoff)
	cfg.MaxBackoff = parseDuration(retry.MaxBackoff, cfg.MaxBackoff)
	if retry.BackoffMultiplier > 1 {
		cfg.Multiplier = retry.BackoffMultiplier
	}
	if retry.Jitter > 0 && retry.Jitter <= 1 {
		cfg.Jitter = retry.Jitter
	}
	if len(retry.RetryableStatuses) > 0 {
		statuses := make(map[int]bool, len(retry.RetryableStatuses))
		for _, status := range retry.RetryableStatuses {
			statuses[status] = true
		}
		cfg.RetryableStatuses = statuses
	}
	return cfg
}

// ParseTimeout parses a timeout with fallback chain: provider override >
// global > default. Negative durations are rejected.
func ParseTimeout(providerOverride *string, defaultVal time.Duration) time.Duration {
	if providerOverride != nil && *providerOverride != "" {
		if d, err := time.ParseDuration(*providerOverride); err == nil && d >= 0 {
			return d
		}
	}
	return defaultVal
}

// ResetTimeout parses the breaker reset timeout, defaulting when unset or
// invalid.
func (b BreakerConfig) ResetTimeoutDuration() time.Duration {
	return parseDuration(b.ResetTimeout, resilience.DefaultResetTimeout)
}

// parseDuration parses a duration string with a fallback default.
// Negative durations are rejected to prevent invalid backoff values.
func parseDuration(value string, defaultVal time.Duration) time.Duration {
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultVal
}
