// Package llm defines the provider contract and shared types used by the
// resilient client. All provider adapters (openai, anthropic, gemini, ollama,
// openrouter) implement the Provider interface and exchange the standardized
// Request/Response types, eliminating duplication across providers.
package llm

import (
	"context"
	"time"
)

// ProviderID identifies a registered provider backend.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderGemini     ProviderID = "gemini"
	ProviderOllama     ProviderID = "ollama"
	ProviderOpenRouter ProviderID = "openrouter"
)

// Usage captures token consumption for a single request.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Normalize enforces TotalTokens == PromptTokens + CompletionTokens.
// Providers that only report prompt/completion counts get a consistent total.
func (u *Usage) Normalize() {
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
}

// Request is a provider-agnostic generation request.
type Request struct {
	Model        string
	Prompt       string
	SystemPrompt string
	Temperature  *float64
	TopP         *float64
	MaxTokens    int
	Stop         []string
	JSONMode     bool
	Timeout      time.Duration
	Metadata     map[string]string
}

// Validate checks the request against the contract: Model and Prompt are
// required, numeric fields must be non-negative.
func (r *Request) Validate() error {
	if r.Model == "" {
		return NewValidationError("request model is required")
	}
	if r.Prompt == "" {
		return NewValidationError("request prompt is required")
	}
	if r.MaxTokens < 0 {
		return NewValidationError("maxTokens must be non-negative")
	}
	if r.Temperature != nil && *r.Temperature < 0 {
		return NewValidationError("temperature must be non-negative")
	}
	if r.TopP != nil && *r.TopP < 0 {
		return NewValidationError("topP must be non-negative")
	}
	if r.Timeout < 0 {
		return NewValidationError("timeout must be non-negative")
	}
	return nil
}

// Response is the standardized response from any provider.
type Response struct {
	Content      string
	Provider     ProviderID
	Model        string
	Usage        Usage
	Latency      time.Duration
	CostUSD      float64
	FinishReason string
	Metadata     map[string]string
}

// ProviderConfig holds per-provider settings. Each provider instance owns its
// own copy; the registry never inspects it.
type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
}

// ConfigPatch describes a partial provider configuration update. Nil fields
// are left unchanged.
type ConfigPatch struct {
	APIKey       *string
	BaseURL      *string
	DefaultModel *string
	Timeout      *time.Duration
	MaxRetries   *int
}

// Apply merges the patch into cfg.
func (p ConfigPatch) Apply(cfg *ProviderConfig) {
	if p.APIKey != nil {
		cfg.APIKey = *p.APIKey
	}
	if p.BaseURL != nil {
		cfg.BaseURL = *p.BaseURL
	}
	if p.DefaultModel != nil {
		cfg.DefaultModel = *p.DefaultModel
	}
	if p.Timeout != nil {
		cfg.Timeout = *p.Timeout
	}
	if p.MaxRetries != nil {
		cfg.MaxRetries = *p.MaxRetries
	}
}

// Provider is the capability contract any text-generation backend implements.
type Provider interface {
	// Generate performs a single generation request.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// ListModels returns the models this provider can serve.
	ListModels(ctx context.Context) ([]string, error)

	// IsModelAvailable reports whether the provider can serve the model.
	IsModelAvailable(ctx context.Context, model string) bool

	// EstimateCost returns the estimated USD cost for the given token counts.
	EstimateCost(model string, tokensIn, tokensOut int) float64

	// Config returns a copy of the provider's current configuration.
	Config() ProviderConfig

	// UpdateConfig applies a partial configuration update.
	UpdateConfig(patch ConfigPatch)
}
