package llm

// Pricing calculates API costs based on token usage.
type Pricing interface {
	// GetCost calculates cost for a given model and token usage
	GetCost(provider ProviderID, model string, tokensIn, tokensOut int) float64
}

// ModelPricing contains pricing information for a model.
type ModelPricing struct {
	InputPer1M  float64 // Cost per 1M input tokens in USD
	OutputPer1M float64 // Cost per 1M output tokens in USD
}

// DefaultPricing provides cost calculation based on published provider rates.
type DefaultPricing struct {
	prices map[ProviderID]map[string]ModelPricing
}

// NewDefaultPricing creates a pricing calculator with current rates.
func NewDefaultPricing() *DefaultPricing {
	return &DefaultPricing{
		prices: buildPricingTable(),
	}
}

// GetCost calculates the cost for a given request. Unknown providers and
// models cost zero.
func (p *DefaultPricing) GetCost(provider ProviderID, model string, tokensIn, tokensOut int) float64 {
	providerPrices, ok := p.prices[provider]
	if !ok {
		return 0.0
	}

	modelPrice, ok := providerPrices[model]
	if !ok {
		return 0.0
	}

	inputCost := float64(tokensIn) / 1_000_000.0 * modelPrice.InputPer1M
	outputCost := float64(tokensOut) / 1_000_000.0 * modelPrice.OutputPer1M

	return inputCost + outputCost
}

// buildPricingTable returns pricing data for all models.
// Pricing as of: 2025-12-27
// Sources:
// - OpenAI: https://openai.com/api/pricing/
// - Anthropic: https://claude.com/pricing
// - Gemini: https://ai.google.dev/gemini-api/docs/pricing
// - OpenRouter: pass-through of the underlying model rates
// - Ollama: Free (local)
func buildPricingTable() map[ProviderID]map[string]ModelPricing {
	return map[ProviderID]map[string]ModelPricing{
		ProviderOpenAI: {
			"gpt-5.2": {
				InputPer1M:  1.75,
				OutputPer1M: 14.00,
			},
			"gpt-5.2-pro": {
				InputPer1M:  21.00,
				OutputPer1M: 168.00,
			},
			"gpt-4o": {
				InputPer1M:  2.50,
				OutputPer1M: 10.00,
			},
			"gpt-4o-mini": {
				InputPer1M:  0.15,
				OutputPer1M: 0.60,
			},
			"gpt-3.5-turbo": {
				InputPer1M:  0.50,
				OutputPer1M: 1.50,
			},
			"o1": {
				InputPer1M:  15.00,
				OutputPer1M: 60.00,
			},
			"o3-mini": {
				InputPer1M:  1.10,
				OutputPer1M: 4.40,
			},
		},
		ProviderAnthropic: {
			"claude-opus-4-5-20251101": {
				InputPer1M:  5.00,
				OutputPer1M: 25.00,
			},
			"claude-sonnet-4-5-20250929": {
				InputPer1M:  3.00,
				OutputPer1M: 15.00,
			},
			"claude-haiku-4-5": {
				InputPer1M:  1.00,
				OutputPer1M: 5.00,
			},
			"claude-3-5-sonnet-20241022": {
				InputPer1M:  3.00,
				OutputPer1M: 15.00,
			},
			"claude-3-5-haiku-20241022": {
				InputPer1M:  0.80,
				OutputPer1M: 4.00,
			},
		},
		ProviderGemini: {
			"gemini-3-pro-preview": {
				InputPer1M:  2.00,
				OutputPer1M: 12.00,
			},
			"gemini-2.5-pro": {
				InputPer1M:  1.25,
				OutputPer1M: 10.00,
			},
			"gemini-2.5-flash": {
				InputPer1M:  0.15,
				OutputPer1M: 0.60,
			},
		},
		ProviderOpenRouter: {
			"openai/gpt-4o": {
				InputPer1M:  2.50,
				OutputPer1M: 10.00,
			},
			"anthropic/claude-sonnet-4-5": {
				InputPer1M:  3.00,
				OutputPer1M: 15.00,
			},
			"meta-llama/llama-3.3-70b-instruct": {
				InputPer1M:  0.12,
				OutputPer1M: 0.30,
			},
		},
		ProviderOllama: {
			// All Ollama models are free (local execution)
		},
	}
}
