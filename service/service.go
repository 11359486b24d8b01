// Package service implements the resilience orchestrator: it composes
// registry lookup, timeout enforcement, circuit breaking and retry around a
// single provider call, tracks token budgets and emits cost and latency
// telemetry through caller-supplied callbacks.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bkyoung/llmclient/llm"
	"github.com/bkyoung/llmclient/resilience"
)

// DefaultTimeout guards provider calls when neither the request nor the
// provider configuration specifies one.
const DefaultTimeout = 30 * time.Second

// CostCallback receives the cost of each successful request that reported one.
type CostCallback func(costUSD float64, model string, provider llm.ProviderID)

// RequestCallback receives timing for each successful request.
type RequestCallback func(provider llm.ProviderID, model string, elapsed time.Duration)

// UsageCallback receives token counts for each successful request.
type UsageCallback func(provider llm.ProviderID, tokensIn, tokensOut int)

// ErrorCallback receives the classified kind of each failed request.
type ErrorCallback func(provider llm.ProviderID, kind llm.ErrorKind)

// Config configures a Service.
type Config struct {
	// Registry resolves provider identifiers. Required.
	Registry *llm.Registry

	// DefaultProvider is used when a request names no provider. When empty
	// the registry's own preference order decides.
	DefaultProvider llm.ProviderID

	// EnableRetry turns on the retry executor. Retry overrides the module
	// default retry configuration when non-nil.
	EnableRetry bool
	Retry       *resilience.RetryConfig

	// OnRetry is invoked before each backoff sleep.
	OnRetry resilience.RetryCallback

	// EnableBreaker turns on per-provider circuit breaking.
	EnableBreaker    bool
	FailureThreshold int
	ResetTimeout     time.Duration

	// Budget enables token budget enforcement when non-nil. The service
	// takes ownership of the value.
	Budget *TokenBudget

	// Pricing estimates request cost when neither the response nor the
	// provider reports one. Defaults to the published rate table.
	Pricing llm.Pricing

	// OnCost, OnRequest, OnUsage and OnError are pure side-effecting
	// hooks. Panics inside them never propagate into the request path.
	OnCost    CostCallback
	OnRequest RequestCallback
	OnUsage   UsageCallback
	OnError   ErrorCallback

	// Logger receives structured request/response/error records. Optional.
	Logger llm.Logger

	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Options tunes a single Complete call.
type Options struct {
	Provider     llm.ProviderID
	Model        string
	SystemPrompt string
	Temperature  *float64
	TopP         *float64
	MaxTokens    int
	Stop         []string
	JSONMode     bool
	Timeout      time.Duration
	Metadata     map[string]string
}

// Service orchestrates resilient provider calls. Construct one per process
// (or per test); breaker and budget state are owned by the instance, never
// process-wide.
type Service struct {
	cfg     Config
	retry   resilience.RetryConfig
	pricing llm.Pricing
	now     func() time.Time

	mu       sync.Mutex
	breakers map[llm.ProviderID]*resilience.Breaker
	budget   *TokenBudget
}

// New constructs a Service from the given configuration.
func New(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, llm.NewConfigurationError("a provider registry is required")
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	pricing := cfg.Pricing
	if pricing == nil {
		pricing = llm.NewDefaultPricing()
	}

	s := &Service{
		cfg:      cfg,
		retry:    retry,
		pricing:  pricing,
		now:      now,
		breakers: make(map[llm.ProviderID]*resilience.Breaker),
	}
	if cfg.Budget != nil {
		budget := *cfg.Budget
		s.budget = &budget
	}
	return s, nil
}

// Complete sends a plain text prompt to the resolved provider and returns the
// response after the configured protections have run.
func (s *Service) Complete(ctx context.Context, prompt string, opts Options) (*llm.Response, error) {
	id, provider, err := s.resolve(opts.Provider)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = provider.Config().DefaultModel
	}

	req := &llm.Request{
		Model:        model,
		Prompt:       prompt,
		SystemPrompt: opts.SystemPrompt,
		Temperature:  opts.Temperature,
		TopP:         opts.TopP,
		MaxTokens:    opts.MaxTokens,
		Stop:         opts.Stop,
		JSONMode:     opts.JSONMode,
		Timeout:      opts.Timeout,
		Metadata:     opts.Metadata,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return s.execute(ctx, id, provider, req)
}

// TokenBudget returns a snapshot of the current budget state. The second
// return value is false when no budget is configured.
func (s *Service) TokenBudget() (TokenBudget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget == nil {
		return TokenBudget{}, false
	}
	return *s.budget, true
}

// CircuitBreakerState reports the breaker state for a provider, or
// StateUnknown when no breaker has been created for it.
func (s *Service) CircuitBreakerState(id llm.ProviderID) resilience.BreakerState {
	s.mu.Lock()
	b, ok := s.breakers[id]
	s.mu.Unlock()

	if !ok {
		return resilience.StateUnknown
	}
	return b.State()
}

// ResetCircuitBreakers closes every breaker and clears failure counts.
func (s *Service) ResetCircuitBreakers() {
	s.mu.Lock()
	breakers := make([]*resilience.Breaker, 0, len(s.breakers))
	for _, b := range s.breakers {
		breakers = append(breakers, b)
	}
	s.mu.Unlock()

	for _, b := range breakers {
		b.Reset()
	}
}

// resolve picks the provider for a call: explicit id, then the configured
// default, then the registry's preference order.
func (s *Service) resolve(id llm.ProviderID) (llm.ProviderID, llm.Provider, error) {
	if id != "" {
		p, ok := s.cfg.Registry.Get(id)
		if !ok {
			return "", nil, llm.NewConfigurationError(fmt.Sprintf("provider %q is not registered", id))
		}
		return id, p, nil
	}

	if s.cfg.DefaultProvider != "" {
		if p, ok := s.cfg.Registry.Get(s.cfg.DefaultProvider); ok {
			return s.cfg.DefaultProvider, p, nil
		}
	}

	if id, p, ok := s.cfg.Registry.Default(); ok {
		return id, p, nil
	}
	return "", nil, llm.NewConfigurationError("no provider registered")
}

// execute runs the protection composition around a single request: budget
// gate, then breaker wrapping retry wrapping the timeout-guarded call, so
// repeated retries inside one breaker-guarded call count as one breaker
// outcome.
func (s *Service) execute(ctx context.Context, id llm.ProviderID, provider llm.Provider, req *llm.Request) (*llm.Response, error) {
	if err := s.checkBudget(); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = provider.Config().Timeout
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	s.logRequest(ctx, id, provider, req)

	var resp *llm.Response
	attempt := func(ctx context.Context) error {
		r, err := s.guarded(ctx, id, provider, req, timeout)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	call := attempt
	if s.cfg.EnableRetry {
		call = func(ctx context.Context) error {
			return resilience.WithRetry(ctx, attempt, s.retry, s.cfg.OnRetry)
		}
	}

	start := time.Now()
	var err error
	if s.cfg.EnableBreaker {
		err = s.breakerFor(id).Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	elapsed := time.Since(start)

	if err != nil {
		s.logError(ctx, id, req, elapsed, err)
		s.notifyError(id, err)
		return nil, err
	}

	if resp.CostUSD == 0 {
		resp.CostUSD = provider.EstimateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	if resp.CostUSD == 0 {
		resp.CostUSD = s.pricing.GetCost(resp.Provider, resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	s.creditUsage(resp.Usage.TotalTokens)
	s.notify(resp, elapsed)
	s.logResponse(ctx, resp, elapsed)

	return resp, nil
}

// guarded races the provider call against the timeout. The result channel is
// buffered so a late settlement from the losing side is dropped, never
// observed by the orchestrator.
func (s *Service) guarded(ctx context.Context, id llm.ProviderID, provider llm.Provider, req *llm.Request, timeout time.Duration) (*llm.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		resp *llm.Response
		err  error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		resp, err := provider.Generate(callCtx, req)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		resp := o.resp
		resp.Provider = id
		if resp.Model == "" {
			resp.Model = req.Model
		}
		resp.Usage.Normalize()
		if resp.Latency == 0 {
			resp.Latency = time.Since(start)
		}
		return resp, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			// Caller cancellation, not our timer.
			return nil, err
		}
		return nil, llm.NewTimeoutError(id, fmt.Sprintf("request timed out after %s", timeout))
	}
}

func (s *Service) breakerFor(id llm.ProviderID) *resilience.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[id]
	if !ok {
		b = resilience.NewBreakerWithClock(id, s.cfg.FailureThreshold, s.cfg.ResetTimeout, s.now)
		s.breakers[id] = b
	}
	return b
}

func (s *Service) checkBudget() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget == nil {
		return nil
	}

	s.budget.applyResets(s.now())

	if s.budget.DailyLimit > 0 && s.budget.DailyUsage >= s.budget.DailyLimit {
		return llm.NewBudgetExceededError(fmt.Sprintf(
			"daily token budget exhausted (%d/%d)", s.budget.DailyUsage, s.budget.DailyLimit))
	}
	if s.budget.MonthlyLimit > 0 && s.budget.MonthlyUsage >= s.budget.MonthlyLimit {
		return llm.NewBudgetExceededError(fmt.Sprintf(
			"monthly token budget exhausted (%d/%d)", s.budget.MonthlyUsage, s.budget.MonthlyLimit))
	}
	return nil
}

func (s *Service) creditUsage(tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget == nil {
		return
	}
	s.budget.DailyUsage += tokens
	s.budget.MonthlyUsage += tokens
}

// notify invokes the telemetry callbacks. A panicking callback must never
// break the request path, so each runs behind a recover.
func (s *Service) notify(resp *llm.Response, elapsed time.Duration) {
	if s.cfg.OnCost != nil && resp.CostUSD > 0 {
		func() {
			defer func() { _ = recover() }()
			s.cfg.OnCost(resp.CostUSD, resp.Model, resp.Provider)
		}()
	}
	if s.cfg.OnRequest != nil {
		func() {
			defer func() { _ = recover() }()
			s.cfg.OnRequest(resp.Provider, resp.Model, elapsed)
		}()
	}
	if s.cfg.OnUsage != nil {
		func() {
			defer func() { _ = recover() }()
			s.cfg.OnUsage(resp.Provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}()
	}
}

// notifyError reports a failed request to the error callback, classified by
// kind, behind the same recover guard as the success hooks.
func (s *Service) notifyError(id llm.ProviderID, err error) {
	if s.cfg.OnError == nil {
		return
	}

	kind := llm.KindUnknown
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		kind = lerr.Kind
	}

	func() {
		defer func() { _ = recover() }()
		s.cfg.OnError(id, kind)
	}()
}

func (s *Service) logRequest(ctx context.Context, id llm.ProviderID, provider llm.Provider, req *llm.Request) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.LogRequest(ctx, llm.RequestLog{
		Provider:    id,
		Model:       req.Model,
		Timestamp:   s.now(),
		PromptChars: len(req.Prompt),
		APIKey:      provider.Config().APIKey,
	})
}

func (s *Service) logResponse(ctx context.Context, resp *llm.Response, elapsed time.Duration) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.LogResponse(ctx, llm.ResponseLog{
		Provider:       resp.Provider,
		Model:          resp.Model,
		Timestamp:      s.now(),
		Duration:       elapsed,
		TokensIn:       resp.Usage.PromptTokens,
		TokensOut:      resp.Usage.CompletionTokens,
		Cost:           resp.CostUSD,
		FinishReason:   resp.FinishReason,
		ContentPreview: llm.TruncateForLogging(resp.Content),
	})
}

func (s *Service) logError(ctx context.Context, id llm.ProviderID, req *llm.Request, elapsed time.Duration, err error) {
	if s.cfg.Logger == nil {
		return
	}

	entry := llm.ErrorLog{
		Provider:  id,
		Model:     req.Model,
		Timestamp: s.now(),
		Duration:  elapsed,
		Error:     err,
		Kind:      llm.KindUnknown,
	}
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		entry.Kind = lerr.Kind
		entry.StatusCode = lerr.StatusCode
		entry.Retryable = lerr.Retryable
	}
	s.cfg.Logger.LogError(ctx, entry)
}
