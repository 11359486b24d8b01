package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "llmclient"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "LLM"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return expandEnvVars(cfg), nil
}

// setDefaults seeds viper with the module defaults so a missing config file
// still yields a usable configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("retry.enabled", true)
	v.SetDefault("retry.maxRetries", 3)
	v.SetDefault("retry.initialBackoff", "1s")
	v.SetDefault("retry.maxBackoff", "60s")
	v.SetDefault("retry.backoffMultiplier", 2.0)
	v.SetDefault("retry.jitter", 0.1)
	v.SetDefault("retry.retryableStatuses", []int{408, 429, 500, 502, 503, 504})

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failureThreshold", 5)
	v.SetDefault("breaker.resetTimeout", "60s")

	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "human")
	v.SetDefault("logging.redactAPIKeys", true)

	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.path", "llmclient.db")
}

// locateConfigFile searches the candidate paths for a config file with a
// known extension.
func locateConfigFile(name string, paths []string) string {
	extensions := []string{"yaml", "yml", "json", "toml"}
	for _, dir := range paths {
		for _, ext := range extensions {
			candidate := filepath.Join(dir, fmt.Sprintf("%s.%s", name, ext))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	for name, provider := range cfg.Providers {
		provider.APIKey = expandEnvString(provider.APIKey)
		provider.Model = expandEnvString(provider.Model)
		provider.BaseURL = expandEnvString(provider.BaseURL)
		if provider.Timeout != nil {
			timeout := expandEnvString(*provider.Timeout)
			provider.Timeout = &timeout
		}
		cfg.Providers[name] = provider
	}

	cfg.DefaultProvider = expandEnvString(cfg.DefaultProvider)
	cfg.Ledger.Path = expandEnvString(cfg.Ledger.Path)

	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvString replaces environment variable references in a string.
// Unset variables expand to the empty string.
func expandEnvString(value string) string {
	if value == "" || !strings.Contains(value, "$") {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		name = strings.TrimPrefix(name, "{")
		name = strings.TrimSuffix(name, "}")
		return os.Getenv(name)
	})
}
