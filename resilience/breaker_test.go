package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/llmclient/llm"
	"github.com/bkyoung/llmclient/resilience"
)

var errBoom = errors.New("boom")

// fakeClock is a manually advanced clock for breaker tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, resetTimeout time.Duration) (*resilience.Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	b := resilience.NewBreakerWithClock(llm.ProviderOpenAI, threshold, resetTimeout, clock.Now)
	return b, clock
}

func fail(ctx context.Context) error { return errBoom }

func succeed(ctx context.Context) error { return nil }

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)

	assert.Equal(t, resilience.StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, b.Execute(ctx, fail), errBoom)
		assert.Equal(t, resilience.StateClosed, b.State(), "still closed after %d failures", i+1)
	}

	// The 5th consecutive failure opens the circuit.
	require.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.Equal(t, resilience.StateOpen, b.State())
}

func TestBreakerRejectsWithoutInvokingWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	require.Error(t, b.Execute(ctx, fail))
	require.Equal(t, resilience.StateOpen, b.State())

	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, invoked, "operation must not run while the circuit is open")

	var lerr *llm.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, llm.KindCircuitOpen, lerr.Kind)
	assert.Equal(t, llm.ProviderOpenAI, lerr.Provider)
	assert.False(t, lerr.Retryable)
}

func TestBreakerHalfOpenProbeSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	require.Error(t, b.Execute(ctx, fail))
	require.Equal(t, resilience.StateOpen, b.State())

	// Before the reset timeout, calls are still rejected.
	clock.Advance(59 * time.Second)
	require.ErrorIs(t, b.Execute(ctx, succeed), &llm.Error{Kind: llm.KindCircuitOpen})

	// After the timeout the next call runs as a half-open probe.
	clock.Advance(2 * time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, resilience.StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerHalfOpenProbeFailureDoesNotReopenImmediately(t *testing.T) {
	b, clock := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(ctx, fail))
	}
	require.Equal(t, resilience.StateOpen, b.State())

	clock.Advance(61 * time.Second)

	// A failed probe is counted like an ordinary failure. The count is
	// already at the threshold, so the circuit opens again on that count.
	require.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.Equal(t, resilience.StateOpen, b.State())
	assert.Equal(t, 4, b.Failures())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, 2, b.Failures())

	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, resilience.StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	require.Equal(t, resilience.StateOpen, b.State())

	b.Reset()

	assert.Equal(t, resilience.StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	require.NoError(t, b.Execute(ctx, succeed))
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", resilience.StateClosed.String())
	assert.Equal(t, "open", resilience.StateOpen.String())
	assert.Equal(t, "half-open", resilience.StateHalfOpen.String())
	assert.Equal(t, "unknown", resilience.StateUnknown.String())
}
