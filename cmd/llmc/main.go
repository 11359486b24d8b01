package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bkyoung/llmclient/config"
	"github.com/bkyoung/llmclient/internal/cli"
	"github.com/bkyoung/llmclient/internal/version"
	"github.com/bkyoung/llmclient/ledger"
	"github.com/bkyoung/llmclient/llm"
	"github.com/bkyoung/llmclient/llm/static"
	"github.com/bkyoung/llmclient/service"
)

func main() {
	if err := run(); err != nil {
		// Redact API keys from URLs in error messages before logging
		log.Println(llm.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Cancellable context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "llmclient",
		EnvPrefix:   "LLM",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	registry := buildRegistry(cfg)

	svcCfg := service.Config{
		Registry:         registry,
		DefaultProvider:  llm.ProviderID(cfg.DefaultProvider),
		EnableRetry:      cfg.Retry.Enabled,
		EnableBreaker:    cfg.Breaker.Enabled,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeoutDuration(),
		Logger:           buildLogger(cfg.Logging),
	}
	retryCfg := config.BuildRetryConfig(cfg.Retry, nil)
	svcCfg.Retry = &retryCfg
	if cfg.Budget.DailyTokens > 0 || cfg.Budget.MonthlyTokens > 0 {
		svcCfg.Budget = &service.TokenBudget{
			DailyLimit:   cfg.Budget.DailyTokens,
			MonthlyLimit: cfg.Budget.MonthlyTokens,
		}
	}

	var usage *ledger.Store
	if cfg.Ledger.Enabled {
		usage, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("open usage ledger: %w", err)
		}
		defer usage.Close()
	}

	svc, err := service.New(svcCfg)
	if err != nil {
		return err
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Service:  svc,
		Registry: registry,
		Ledger:   usage,
		Version:  version.Version(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return err
	}
	return nil
}

// buildRegistry registers a provider instance per enabled config entry.
// Vendor HTTP adapters live outside this module and register themselves here;
// the static provider stands in for entries without one so the tool works out
// of the box.
func buildRegistry(cfg config.Config) *llm.Registry {
	registry := llm.NewRegistry()
	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		p := static.NewProvider(pc.Model)
		p.UpdateConfig(llm.ConfigPatch{
			APIKey:  &pc.APIKey,
			BaseURL: &pc.BaseURL,
			Timeout: timeoutPtr(pc.Timeout),
		})
		registry.Register(llm.ProviderID(name), p)
	}
	if len(registry.List()) == 0 {
		registry.Register("static", static.NewProvider("static-small"))
	}
	return registry
}

func timeoutPtr(override *string) *time.Duration {
	if override == nil {
		return nil
	}
	d := config.ParseTimeout(override, service.DefaultTimeout)
	return &d
}

func buildLogger(cfg config.LoggingConfig) llm.Logger {
	if !cfg.Enabled {
		return nil
	}

	level := llm.LogLevelInfo
	switch cfg.Level {
	case "debug":
		level = llm.LogLevelDebug
	case "error":
		level = llm.LogLevelError
	}

	format := llm.LogFormatHuman
	if cfg.Format == "json" {
		format = llm.LogFormatJSON
	}

	return llm.NewDefaultLogger(level, format, cfg.RedactAPIKeys)
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "llmclient"))
	}
	return paths
}
