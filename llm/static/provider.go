package static

import (
	"context"
	"sync"

	"github.com/bkyoung/llmclient/llm"
)

const defaultContent = "This is a canned response from the static provider."

type step struct {
	resp *llm.Response
	err  error
}

// Provider implements llm.Provider with scripted responses. Queued responses
// and errors are consumed in order; once the script is exhausted Generate
// returns a deterministic canned response with estimated token usage.
type Provider struct {
	mu     sync.Mutex
	cfg    llm.ProviderConfig
	models []string
	script []step
	calls  int
	last   *llm.Request
}

// NewProvider constructs a static provider serving the given default model.
func NewProvider(model string) *Provider {
	return &Provider{
		cfg: llm.ProviderConfig{
			DefaultModel: model,
		},
		models: []string{model},
	}
}

// WithModels replaces the provider's served model list.
func (p *Provider) WithModels(models ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = models
	return p
}

// Queue appends a canned response to the script.
func (p *Provider) Queue(resp *llm.Response) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, step{resp: resp})
	return p
}

// QueueError appends a failure to the script.
func (p *Provider) QueueError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, step{err: err})
	return p
}

// Calls returns how many times Generate has been invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastRequest returns the most recent request seen by Generate.
func (p *Provider) LastRequest() *llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Generate serves the next scripted step, or the canned default.
func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls++
	p.last = req

	var next *step
	if len(p.script) > 0 {
		s := p.script[0]
		p.script = p.script[1:]
		next = &s
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if next != nil {
		if next.err != nil {
			return nil, next.err
		}
		resp := *next.resp
		return &resp, nil
	}

	promptTokens := llm.EstimateTokens(req.Prompt)
	completionTokens := llm.EstimateTokens(defaultContent)
	return &llm.Response{
		Content: defaultContent,
		Model:   req.Model,
		Usage: llm.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		FinishReason: "stop",
	}, nil
}

// ListModels returns the configured model list.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	models := make([]string, len(p.models))
	copy(models, p.models)
	return models, nil
}

// IsModelAvailable reports whether model is in the configured list.
func (p *Provider) IsModelAvailable(ctx context.Context, model string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

// EstimateCost returns zero: static responses are free.
func (p *Provider) EstimateCost(model string, tokensIn, tokensOut int) float64 {
	return 0
}

// Config returns a copy of the provider configuration.
func (p *Provider) Config() llm.ProviderConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// UpdateConfig applies a partial configuration update.
func (p *Provider) UpdateConfig(patch llm.ConfigPatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	patch.Apply(&p.cfg)
}
