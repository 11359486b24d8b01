package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/llmclient/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "llmclient.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "1s", cfg.Retry.InitialBackoff)
	assert.Equal(t, "60s", cfg.Retry.MaxBackoff)
	assert.InDelta(t, 2.0, cfg.Retry.BackoffMultiplier, 0.001)
	assert.InDelta(t, 0.1, cfg.Retry.Jitter, 0.001)
	assert.ElementsMatch(t, []int{408, 429, 500, 502, 503, 504}, cfg.Retry.RetryableStatuses)

	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, "60s", cfg.Breaker.ResetTimeout)

	assert.True(t, cfg.Logging.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Ledger.Enabled)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := writeConfig(t, `
defaultProvider: openai
providers:
  openai:
    enabled: true
    model: gpt-4o
    apiKey: sk-test
retry:
  maxRetries: 5
  initialBackoff: 500ms
budget:
  dailyTokens: 100000
  monthlyTokens: 2000000
ledger:
  enabled: true
  path: usage.db
`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.DefaultProvider)
	require.Contains(t, cfg.Providers, "openai")
	assert.Equal(t, "gpt-4o", cfg.Providers["openai"].Model)
	assert.Equal(t, "sk-test", cfg.Providers["openai"].APIKey)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, "500ms", cfg.Retry.InitialBackoff)
	assert.Equal(t, 100000, cfg.Budget.DailyTokens)
	assert.Equal(t, 2000000, cfg.Budget.MonthlyTokens)
	assert.True(t, cfg.Ledger.Enabled)
	assert.Equal(t, "usage.db", cfg.Ledger.Path)
}

func TestLoadExpandsEnvVarsInProviderFields(t *testing.T) {
	t.Setenv("TEST_LLM_API_KEY", "sk-from-env")

	dir := writeConfig(t, `
providers:
  openai:
    enabled: true
    model: gpt-4o
    apiKey: ${TEST_LLM_API_KEY}
`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Providers["openai"].APIKey)
}

func TestLoadUnsetEnvVarExpandsEmpty(t *testing.T) {
	dir := writeConfig(t, `
providers:
  openai:
    enabled: true
    apiKey: ${DEFINITELY_NOT_SET_ANYWHERE_12345}
`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Empty(t, cfg.Providers["openai"].APIKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := writeConfig(t, "providers: [not a map\n")

	_, err := config.Load(config.LoaderOptions{ConfigPaths: []string{dir}})
	require.Error(t, err)
}

func TestBuildRetryConfig(t *testing.T) {
	t.Run("defaults when section empty", func(t *testing.T) {
		cfg := config.BuildRetryConfig(config.RetryConfig{}, nil)
		assert.Equal(t, 3, cfg.MaxRetries)
		assert.Equal(t, time.Second, cfg.InitialBackoff)
		assert.Equal(t, 60*time.Second, cfg.MaxBackoff)
	})

	t.Run("global settings applied", func(t *testing.T) {
		cfg := config.BuildRetryConfig(config.RetryConfig{
			MaxRetries:        7,
			InitialBackoff:    "250ms",
			MaxBackoff:        "10s",
			BackoffMultiplier: 3.0,
			Jitter:            0.2,
			RetryableStatuses: []int{429},
		}, nil)

		assert.Equal(t, 7, cfg.MaxRetries)
		assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
		assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
		assert.InDelta(t, 3.0, cfg.Multiplier, 0.001)
		assert.InDelta(t, 0.2, cfg.Jitter, 0.001)
		assert.True(t, cfg.RetryableStatuses[429])
		assert.False(t, cfg.RetryableStatuses[503])
	})

	t.Run("provider override wins", func(t *testing.T) {
		override := 1
		cfg := config.BuildRetryConfig(config.RetryConfig{MaxRetries: 7},
			&config.ProviderConfig{MaxRetries: &override})
		assert.Equal(t, 1, cfg.MaxRetries)
	})

	t.Run("invalid durations fall back", func(t *testing.T) {
		cfg := config.BuildRetryConfig(config.RetryConfig{
			InitialBackoff: "not-a-duration",
			MaxBackoff:     "-5s",
		}, nil)
		assert.Equal(t, time.Second, cfg.InitialBackoff)
		assert.Equal(t, 60*time.Second, cfg.MaxBackoff)
	})
}

func TestParseTimeout(t *testing.T) {
	override := "45s"
	assert.Equal(t, 45*time.Second, config.ParseTimeout(&override, 30*time.Second))

	bad := "nonsense"
	assert.Equal(t, 30*time.Second, config.ParseTimeout(&bad, 30*time.Second))

	assert.Equal(t, 30*time.Second, config.ParseTimeout(nil, 30*time.Second))
}

func TestBreakerResetTimeoutDuration(t *testing.T) {
	b := config.BreakerConfig{ResetTimeout: "90s"}
	assert.Equal(t, 90*time.Second, b.ResetTimeoutDuration())

	assert.Equal(t, 60*time.Second, config.BreakerConfig{}.ResetTimeoutDuration())
}
