package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/bkyoung/llmclient/llm"
)

// BreakerState is the current state of a circuit breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen

	// StateUnknown is reported for providers that have no breaker yet.
	StateUnknown BreakerState = -1
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is the consecutive failure count that opens
	// the circuit.
	DefaultFailureThreshold = 5

	// DefaultResetTimeout is the cool-down before an open circuit allows a
	// recovery probe.
	DefaultResetTimeout = 60 * time.Second
)

// Breaker is a per-provider circuit breaker. Once a provider has failed
// FailureThreshold times the breaker opens and rejects calls without invoking
// the provider; after ResetTimeout the next call runs as a half-open probe
// whose success closes the circuit again.
//
// The open to half-open transition is evaluated lazily at the start of each
// call. A failed half-open probe is counted like an ordinary closed-state
// failure rather than reopening immediately; with the failure count already
// at the threshold it reopens on the next recorded failure.
type Breaker struct {
	mu           sync.Mutex
	provider     llm.ProviderID
	failures     int
	lastFailure  time.Time
	state        BreakerState
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
}

// NewBreaker creates a closed breaker for the given provider.
func NewBreaker(provider llm.ProviderID, threshold int, resetTimeout time.Duration) *Breaker {
	return NewBreakerWithClock(provider, threshold, resetTimeout, time.Now)
}

// NewBreakerWithClock creates a breaker with an injectable clock for tests.
func NewBreakerWithClock(provider llm.ProviderID, threshold int, resetTimeout time.Duration, now func() time.Time) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	return &Breaker{
		provider:     provider,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          now,
	}
}

// Execute runs the operation through the breaker. When the circuit is open
// the operation is not invoked and a circuit-open error is returned.
func (b *Breaker) Execute(ctx context.Context, operation Operation) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := operation(ctx)
	if err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return nil
}

// State returns the breaker's current state without evaluating transitions.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset returns the breaker to closed with a zero failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
}

// allow evaluates the open to half-open transition, then rejects if the
// circuit is still open.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) >= b.resetTimeout {
			b.state = StateHalfOpen
		} else {
			return llm.NewCircuitOpenError(b.provider)
		}
	}
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.threshold {
		b.state = StateOpen
	}
}
